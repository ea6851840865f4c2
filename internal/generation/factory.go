package generation

import (
	"strings"

	"go.uber.org/zap"
)

// New builds the generator named by opts.Provider.
func New(opts Options, logger *zap.Logger) (Generator, error) {
	if strings.ToLower(opts.Provider) == ProviderMock {
		return NewMockGenerator(), nil
	}
	g, err := NewHTTPGenerator(opts, logger)
	if err != nil {
		return nil, err
	}
	return g, nil
}
