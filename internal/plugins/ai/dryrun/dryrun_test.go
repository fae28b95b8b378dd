package dryrun

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/havenhealth/haven/internal/chat"
	"github.com/havenhealth/haven/internal/domain"
)

func TestListModels_ReturnsExpectedModel(t *testing.T) {
	client := NewClient()
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expected := []string{"dry-run-model"}
	if !reflect.DeepEqual(models, expected) {
		t.Errorf("Expected %v, got %v", expected, models)
	}
}

func TestConfigure_NeedsNothing(t *testing.T) {
	client := NewClient()
	if err := client.Configure(); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if !client.IsConfigured() {
		t.Error("Expected dry run client to be configured")
	}
}

func TestSend_EchoesTranscript(t *testing.T) {
	client := NewClient()
	msgs := []*chat.ChatCompletionMessage{
		{Role: chat.ChatMessageRoleSystem, Content: "be kind"},
		{Role: chat.ChatMessageRoleUser, Content: "Test message"},
	}
	out, err := client.Send(context.Background(), msgs, &domain.ChatOptions{Model: "dry-run-model"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, want := range []string{"Model: dry-run-model", "system: be kind", "user: Test message", DryRunResponse} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got %q", want, out)
		}
	}
}

func TestSendStream_SendsMessages(t *testing.T) {
	client := NewClient()
	msgs := []*chat.ChatCompletionMessage{
		{Role: "user", Content: "Test message"},
	}
	opts := &domain.ChatOptions{
		Model: "dry-run-model",
	}
	channel := make(chan string)
	go func() {
		err := client.SendStream(context.Background(), msgs, opts, channel)
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	}()
	var receivedMessages []string
	for msg := range channel {
		receivedMessages = append(receivedMessages, msg)
	}
	if len(receivedMessages) == 0 {
		t.Errorf("Expected to receive messages, but got none")
	}
}
