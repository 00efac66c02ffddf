// Package generator drives the bounded tool-calling exchange with the
// generative model.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/course-rag/backend/pkg/logger"
)

const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with retrieval tools for course information.

Tool usage:
- search_course_content: for questions about specific course content or detailed educational materials
- get_course_outline: for questions about course structure, the lesson list, or a course overview
- One retrieval per question: results from a single search must be synthesized into the answer
- If a tool yields no results, state this clearly without offering alternatives

Responses:
- Answer general knowledge questions directly from existing knowledge, without tools
- Be brief, clear and educational
- Give only the direct answer; never mention tools, searches or your reasoning process`

// fallbackAnswer is returned when the model produces no usable text.
const fallbackAnswer = "I apologize, but I encountered an issue processing your request."

// ChatCompleter is the external generative model. A nil tools slice
// must disable tool calling for that turn.
type ChatCompleter interface {
	Chat(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionResponse, error)
}

// ToolExecutor enumerates tool schemas and dispatches calls by name.
type ToolExecutor interface {
	Definitions() []openai.Tool
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

type Generator struct {
	chat     ChatCompleter
	registry ToolExecutor
}

func New(chat ChatCompleter, registry ToolExecutor) *Generator {
	return &Generator{chat: chat, registry: registry}
}

// Generate answers one query. The model is called with tools enabled;
// if it requests retrieval, the tools are executed and exactly one
// follow-up call is made with tools disabled, whose response is final.
// Disabling tools on the second call enforces the one-retrieval bound
// structurally.
func (g *Generator) Generate(ctx context.Context, query, history string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: g.systemContent(history)},
		{Role: openai.ChatMessageRoleUser, Content: query},
	}

	resp, err := g.chat.Chat(ctx, messages, g.registry.Definitions())
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return extractText(resp), nil
	}

	assistant := resp.Choices[0].Message
	messages = append(messages, assistant)

	for _, call := range assistant.ToolCalls {
		result, err := g.registry.Execute(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
		if err != nil {
			logger.Warn("tool execution failed",
				zap.String("tool", call.Function.Name),
				zap.Error(err),
			)
			return fmt.Sprintf("I encountered an error while searching the course materials: %v", err), nil
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    result,
			ToolCallID: call.ID,
		})
	}

	final, err := g.chat.Chat(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}
	return extractText(final), nil
}

func (g *Generator) systemContent(history string) string {
	if history == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\nPrevious conversation:\n" + history
}

// extractText pulls answer text out of a response without assuming any
// content is present; an empty or odd-shaped payload degrades to a
// fixed fallback instead of a fault.
func extractText(resp openai.ChatCompletionResponse) string {
	var parts []string
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return fallbackAnswer
	}
	return strings.Join(parts, " ")
}
