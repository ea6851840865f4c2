// Package e2e provides end-to-end tests that replay a synthetic support-chat corpus
// through the harness, the evaluator and the HTTP API.
package e2e

import (
	"fmt"

	"github.com/hyperjump/semcache/internal/models"
)

// Topic is a customer question, a reworded variant with the same intent and the
// scripted agent answer.
type Topic struct {
	Question   string
	Paraphrase string
	Answer     string
}

// Label is one ground-truth row: whether the user turn repeats an earlier intent.
type Label struct {
	SessionID string
	TurnIndex int
	Duplicate bool
}

// Corpus holds conversations, their labels and the counts a cache that reuses
// only exact repeats must produce.
type Corpus struct {
	Conversations []models.Conversation
	Labels        []Label

	UserTurns int
	// Repeats are labelled duplicates with an identical first turn.
	Repeats int
	// Paraphrases are labelled duplicates worded differently.
	Paraphrases int
}

var topics = []Topic{
	{"what is the refund window?", "how many days do I have to return something?", "You can return items within 30 days."},
	{"how do I reset my password?", "I forgot my password, what now?", "Use the forgot password link on the sign-in page."},
	{"do you ship internationally?", "can you deliver outside the country?", "We ship to over 40 countries."},
	{"how long does shipping take?", "when will my order arrive?", "Standard shipping takes 3 to 5 business days."},
	{"can I change my delivery address?", "I need to update where my parcel goes", "You can edit the address until the order ships."},
	{"what payment methods do you accept?", "can I pay with a credit card?", "We accept cards, PayPal and bank transfer."},
	{"how do I cancel my subscription?", "I want to stop my monthly plan", "Go to Account > Billing and choose cancel."},
	{"is there a student discount?", "do students get cheaper prices?", "Students get 20 percent off with a valid ID."},
	{"where can I find my invoice?", "how do I download a receipt?", "Invoices are under Orders > Details."},
	{"how do I contact support?", "what is your customer service number?", "Chat with us here or email help@example.com."},
}

var unrelated = []string{
	"do you have gift cards?",
	"are your products vegan?",
	"what are your store opening hours?",
	"can I order in bulk for my company?",
	"do you offer gift wrapping?",
}

// BuildCorpus returns the synthetic corpus: one opening session per topic (question,
// agent answer, follow-up), an exact repeat of the question for even topics, a
// paraphrase for odd topics, and a handful of unrelated first-time questions.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	add := func(sid string, turns []models.DatasetTurn, labels ...bool) {
		c.Conversations = append(c.Conversations, models.Conversation{SessionID: sid, Turns: turns})
		li := 0
		for idx, t := range turns {
			if t.Role != "user" {
				continue
			}
			c.Labels = append(c.Labels, Label{SessionID: sid, TurnIndex: idx, Duplicate: labels[li]})
			c.UserTurns++
			li++
		}
	}

	for i, t := range topics {
		add(fmt.Sprintf("open-%02d", i), []models.DatasetTurn{
			{Role: "user", Text: t.Question},
			{Role: "ai", Text: t.Answer},
			{Role: "user", Text: "thanks, that helps"},
		}, false, false)
	}
	for i, t := range topics {
		if i%2 == 0 {
			add(fmt.Sprintf("repeat-%02d", i), []models.DatasetTurn{{Role: "user", Text: t.Question}}, true)
			c.Repeats++
		} else {
			add(fmt.Sprintf("para-%02d", i), []models.DatasetTurn{{Role: "user", Text: t.Paraphrase}}, true)
			c.Paraphrases++
		}
	}
	for i, q := range unrelated {
		add(fmt.Sprintf("fresh-%02d", i), []models.DatasetTurn{{Role: "user", Text: q}}, false)
	}
	return c
}

// Negatives is the number of labelled non-duplicate user turns.
func (c *Corpus) Negatives() int {
	return c.UserTurns - c.Repeats - c.Paraphrases
}
