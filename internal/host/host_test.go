package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agenthost/agenthost/internal/config"
	"github.com/agenthost/agenthost/internal/types"
	"github.com/agenthost/agenthost/pkg/llm"
)

type stubProvider struct {
	response *llm.Response
}

func (p *stubProvider) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	if p.response != nil {
		return p.response, nil
	}
	return &llm.Response{Content: "ok"}, nil
}

func (p *stubProvider) Stream(ctx context.Context, messages []llm.Message, tools []llm.Tool) (<-chan llm.Delta, error) {
	ch := make(chan llm.Delta)
	close(ch)
	return ch, nil
}

type stubAdapter struct {
	sent []string
}

func (a *stubAdapter) Send(ctx context.Context, userID types.UserID, body string) error {
	a.sent = append(a.sent, body)
	return nil
}
func (a *stubAdapter) SendFiles(ctx context.Context, userID types.UserID, paths []string) error {
	return nil
}
func (a *stubAdapter) React(ctx context.Context, userID types.UserID, messageRef, emoji string) error {
	return nil
}
func (a *stubAdapter) SetTyping(ctx context.Context, userID types.UserID) error { return nil }
func (a *stubAdapter) NotifyMenuCommandSet(ctx context.Context, userID types.UserID, commands []string) error {
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(t.TempDir() + "/config.json")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	cfg.DataDir = t.TempDir()
	return *cfg
}

func TestNewWiresAllComponents(t *testing.T) {
	h, err := New(testConfig(t), Deps{Adapter: &stubAdapter{}, Provider: &stubProvider{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if h.Users == nil || h.Sessions == nil || h.Quota == nil || h.Memory == nil {
		t.Fatal("expected core stores to be wired")
	}
	if h.Tasks == nil || h.Schedules == nil || h.sched == nil {
		t.Fatal("expected task and schedule components to be wired")
	}
	if h.Tools == nil {
		t.Fatal("expected tool registry to be wired")
	}
	if len(h.Tools.All()) != 6 {
		t.Errorf("expected 6 registered tools, got %d", len(h.Tools.All()))
	}
}

func TestNewRequiresAdapter(t *testing.T) {
	_, err := New(testConfig(t), Deps{Provider: &stubProvider{}}, nil)
	if err == nil {
		t.Fatal("expected an error when no chat adapter is supplied")
	}
}

func TestExecuteSubAgentTaskInvokesBackend(t *testing.T) {
	h, err := New(testConfig(t), Deps{
		Adapter:  &stubAdapter{},
		Provider: &stubProvider{response: &llm.Response{Content: "sub-agent result"}},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := h.executeSubAgentTask(context.Background(), types.UserID(1), "do the thing")
	if err != nil {
		t.Fatalf("executeSubAgentTask: %v", err)
	}
	if out != "sub-agent result" {
		t.Errorf("expected %q, got %q", "sub-agent result", out)
	}
}

func TestHandleMessageDeliversReply(t *testing.T) {
	adapter := &stubAdapter{}
	h, err := New(testConfig(t), Deps{
		Adapter:  adapter,
		Provider: &stubProvider{response: &llm.Response{Content: "hello back"}},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := h.HandleMessage(context.Background(), types.UserID(42), "hi there"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(adapter.sent) != 1 || adapter.sent[0] != "hello back" {
		t.Errorf("expected adapter to receive %q, got %v", "hello back", adapter.sent)
	}
}

func TestListFilesReturnsTrackedPaths(t *testing.T) {
	h, err := New(testConfig(t), Deps{Adapter: &stubAdapter{}, Provider: &stubProvider{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	userID := types.UserID(7)
	dataDir := h.dataDirFor(userID)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "report.txt"), []byte("hi"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	files, err := h.ListFiles(userID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "report.txt" {
		t.Errorf("expected [report.txt], got %v", files)
	}
}

func TestListFilesOnEmptyUserReturnsEmpty(t *testing.T) {
	h, err := New(testConfig(t), Deps{Adapter: &stubAdapter{}, Provider: &stubProvider{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	files, err := h.ListFiles(types.UserID(99))
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no files, got %v", files)
	}
}

func TestDelegatedTaskDeniedWhenOverQuota(t *testing.T) {
	cfg := testConfig(t)
	cfg.DefaultQuotaBytes = 4
	h, err := New(cfg, Deps{Adapter: &stubAdapter{}, Provider: &stubProvider{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	userID := types.UserID(5)
	if _, err := h.Users.GetOrCreate(context.Background(), userID); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	dataDir := h.dataDirFor(userID)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "already-here.txt"), []byte("well over the tiny quota"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	id, err := h.Tasks.Delegate(context.Background(), userID, "blocked", "prompt")
	if err != nil {
		t.Fatalf("Delegate: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		task, err := h.Tasks.Get(context.Background(), userID, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if task.Status == types.TaskFailed {
			if task.Error == "" {
				t.Fatal("expected a quota-denied error on the task")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected task to be denied by the quota gate wired through Host")
}

func TestStartAndStopDoNotBlock(t *testing.T) {
	h, err := New(testConfig(t), Deps{Adapter: &stubAdapter{}, Provider: &stubProvider{}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.Start(ctx)
	h.Stop()
	cancel()
}
