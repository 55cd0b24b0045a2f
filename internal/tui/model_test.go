package tui

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/anime-shed/weld-inspector-go/internal/picker"
	"github.com/anime-shed/weld-inspector-go/internal/widget"
	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

type stubClassifier struct {
	calls int
}

func (s *stubClassifier) Classify(ctx context.Context, file *picker.SelectedFile) (*models.Prediction, error) {
	s.calls++
	return &models.Prediction{Status: "Accepted", Details: "0.88", Raw: []byte(`{"status":"Accepted","details":"0.88"}`)}, nil
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key(k))
	return next.(Model), cmd
}

// drain runs cmd (and any batch it produces) and feeds the widget's
// result message back into the model.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			m = drain(t, m, c)
		}
		return m
	}
	if res, ok := msg.(widget.ResultMsg); ok {
		next, _ := m.Update(res)
		return next.(Model)
	}
	return m
}

func TestModel_SelectAndInspect(t *testing.T) {
	path := writePNG(t, t.TempDir(), "weld.png")
	stub := &stubClassifier{}
	m := New(context.Background(), widget.New(stub), 1<<20)

	m, _ = press(t, m, "tab")
	if !m.input.Focused() {
		t.Fatal("Expected tab to focus the path input")
	}
	m.input.SetValue(path)
	m, _ = press(t, m, "enter")

	if m.input.Focused() {
		t.Error("Expected enter to leave the path input")
	}
	if f := m.Widget().File(); f == nil || f.Name != "weld.png" {
		t.Fatalf("Expected weld.png selected, got %+v", f)
	}

	m, cmd := press(t, m, "i")
	if m.Widget().Status().Phase() != widget.PhaseSubmitting {
		t.Fatalf("Expected Submitting, got %s", m.Widget().Status().Phase())
	}
	if !strings.Contains(m.View(), widget.InspectingText) {
		t.Error("Expected inspecting notice while submitting")
	}

	m = drain(t, m, cmd)
	if m.Widget().Status().Phase() != widget.PhaseSucceeded {
		t.Fatalf("Expected Succeeded, got %s", m.Widget().Status().Phase())
	}
	if !strings.Contains(m.View(), widget.AcceptedBadge) {
		t.Errorf("Expected accept badge in view:\n%s", m.View())
	}
	if stub.calls != 1 {
		t.Errorf("Expected one classification call, got %d", stub.calls)
	}
}

func TestModel_PickerErrorBecomesNotice(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("not an image at all"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := New(context.Background(), widget.New(&stubClassifier{}), 1<<20)
	m, _ = press(t, m, "tab")
	m.input.SetValue(txt)
	m, _ = press(t, m, "enter")

	st, ok := m.Widget().Status().(widget.Idle)
	if !ok || !strings.Contains(st.Notice, picker.ErrNotImage.Error()) {
		t.Errorf("Expected not-an-image notice, got %#v", m.Widget().Status())
	}
}

func TestModel_InspectWithoutFile(t *testing.T) {
	stub := &stubClassifier{}
	m := New(context.Background(), widget.New(stub), 1<<20)

	m, cmd := press(t, m, "enter")
	if cmd != nil {
		t.Error("Expected no command without a file")
	}
	if !strings.Contains(m.View(), "Please select a file") {
		t.Errorf("Expected select-a-file notice:\n%s", m.View())
	}
	if stub.calls != 0 {
		t.Errorf("Expected no calls, got %d", stub.calls)
	}
}

func TestModel_Quit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			m := New(context.Background(), widget.New(&stubClassifier{}), 1<<20)
			_, cmd := press(t, m, k)
			if cmd == nil {
				t.Fatal("Expected quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("Expected tea.QuitMsg")
			}
		})
	}
}

func TestModel_QTypesIntoFocusedInput(t *testing.T) {
	m := New(context.Background(), widget.New(&stubClassifier{}), 1<<20)
	m, _ = press(t, m, "tab")
	m, _ = press(t, m, "q")
	if m.input.Value() != "q" {
		t.Errorf("Expected q in the input, got %q", m.input.Value())
	}
}
