package core

import (
	"context"
)

// Inferrer sends one instruction to a model and returns its raw text reply.
// The schema describes the structured output the reply must follow.
type Inferrer interface {
	Infer(ctx context.Context, prompt string, schema *Schema) (string, error)
}

// ChatProvider creates model-side conversations
type ChatProvider interface {
	// StartConversation opens a conversation with a fixed system
	// instruction and the given transcript as seed context
	StartConversation(ctx context.Context, systemInstruction string, history []ChatMessage) (Conversation, error)
}

// Conversation is a stateful model-side chat handle. Turns must not overlap.
type Conversation interface {
	Send(ctx context.Context, text string) (string, error)
}

// KeyValueStore persists raw strings under string keys
type KeyValueStore interface {
	// Get returns the stored value and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value, replacing any previous one
	Set(ctx context.Context, key string, value string) error

	// Remove deletes a value; removing a missing key is not an error
	Remove(ctx context.Context, key string) error
}

// SchemaType is the JSON type of a schema node
type SchemaType string

const (
	SchemaObject  SchemaType = "object"
	SchemaArray   SchemaType = "array"
	SchemaString  SchemaType = "string"
	SchemaNumber  SchemaType = "number"
	SchemaInteger SchemaType = "integer"
	SchemaBoolean SchemaType = "boolean"
)

// Schema is a provider-neutral description of a structured reply.
// Adapters translate it into their SDK's schema type.
type Schema struct {
	Type        SchemaType
	Description string
	Enum        []string
	Properties  map[string]*Schema
	// PropertyOrder lists Properties keys in declaration order
	PropertyOrder []string
	Items         *Schema
	Required      []string
}
