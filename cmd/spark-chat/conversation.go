package main

import (
	"github.com/MrPeterss/infosci-spark-client/internal/history"
	"github.com/MrPeterss/infosci-spark-client/spark"
)

// recentTurns is how many stored messages are replayed as context
const recentTurns = 10

// buildMessages constructs the message list sent for one question:
// the system prompt, the recent history, then the current query.
func buildMessages(systemPrompt string, recent []history.Message, query string) []spark.Message {
	messages := make([]spark.Message, 0, len(recent)+2)
	if systemPrompt != "" {
		messages = append(messages, spark.Message{Role: spark.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, history.ToSpark(recent)...)
	messages = append(messages, spark.Message{Role: spark.RoleUser, Content: query})
	return messages
}
