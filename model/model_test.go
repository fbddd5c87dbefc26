package model

import (
	"context"
	"testing"

	"github.com/lorekeep/lorekeep/core"
)

func TestMockModelCannedResponse(t *testing.T) {
	m := NewMockModel("test", "mock")
	m.AddResponse("hello", "hi there")

	resp, err := m.Invoke(context.Background(), Request{Contents: []core.Content{core.NewUserContent("hello")}})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got := resp.Content.Text(); got != "hi there" {
		t.Errorf("Text() = %q, want %q", got, "hi there")
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want stop", resp.FinishReason)
	}
}

func TestMockModelHandler(t *testing.T) {
	m := NewMockModel("test", "mock")
	m.SetHandler(func(ctx context.Context, req Request) (Response, error) {
		return ToolCallResponse(core.FunctionCall{ID: "c1", Name: "web_search", Arguments: `{"query":"go"}`}), nil
	})

	resp, err := m.Invoke(context.Background(), Request{Contents: []core.Content{core.NewUserContent("find go")}})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	calls := resp.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "web_search" {
		t.Fatalf("ToolCalls() = %v, want one web_search call", calls)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("FinishReason = %q, want tool_calls", resp.FinishReason)
	}
	if got := len(m.Requests()); got != 1 {
		t.Errorf("Requests() recorded %d, want 1", got)
	}
}

func TestMockModelNoContents(t *testing.T) {
	m := NewMockModel("test", "mock")
	if _, err := m.Invoke(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for empty contents")
	}
}
