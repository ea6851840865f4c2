package e2e

import "testing"

func TestBuildCorpus_Shape(t *testing.T) {
	c := BuildCorpus()
	if len(c.Conversations) != 2*len(topics)+len(unrelated) {
		t.Errorf("conversations: got %d", len(c.Conversations))
	}
	if c.UserTurns != len(c.Labels) {
		t.Errorf("every user turn should be labelled: %d turns, %d labels", c.UserTurns, len(c.Labels))
	}
	if c.Repeats+c.Paraphrases != len(topics) {
		t.Errorf("repeats=%d paraphrases=%d", c.Repeats, c.Paraphrases)
	}
	if c.Negatives() != 2*len(topics)+len(unrelated) {
		t.Errorf("negatives: got %d", c.Negatives())
	}

	seen := make(map[string]bool)
	for _, convo := range c.Conversations {
		if seen[convo.SessionID] {
			t.Errorf("duplicate session id %s", convo.SessionID)
		}
		seen[convo.SessionID] = true
		if len(convo.Turns) == 0 || convo.Turns[0].Role != "user" {
			t.Errorf("session %s should open with a user turn", convo.SessionID)
		}
	}
	for _, l := range c.Labels {
		if !seen[l.SessionID] {
			t.Errorf("label for unknown session %s", l.SessionID)
		}
	}
}

func TestBuildCorpus_ParaphrasesDiffer(t *testing.T) {
	for _, tp := range topics {
		if tp.Question == tp.Paraphrase {
			t.Errorf("paraphrase of %q is identical", tp.Question)
		}
	}
}
