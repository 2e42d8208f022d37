package generator

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(domain.Prompt{Code: "const x = ", Offset: 10, Language: "typescript"})

	for _, want := range []string{
		"Language: typescript\n",
		"character offset 10 (0-based)",
		"--- BEGIN CODE ---\nconst x = \n--- END CODE ---",
		"propose 3 short completion candidates",
		`"-----SPLIT-----"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"three", "a\n-----SPLIT-----\nb\n-----SPLIT-----\nc", []string{"a", "b", "c"}},
		{"trims and drops empty", "  foo()  \n-----SPLIT-----\n   \n-----SPLIT-----\nbar", []string{"foo()", "bar"}},
		{"no delimiter", "only one", []string{"only one"}},
		{"empty", "", []string{}},
		{"capped", "1-----SPLIT-----2-----SPLIT-----3-----SPLIT-----4-----SPLIT-----5-----SPLIT-----6", []string{"1", "2", "3", "4", "5"}},
		{"multiline candidate", "if (x) {\n  y()\n}\n-----SPLIT-----\nz", []string{"if (x) {\n  y()\n}", "z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseSuggestions(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeminiComplete(t *testing.T) {
	var gotModel, gotPrompt string
	g := newGeminiGenerator("", func(ctx context.Context, model, prompt string) (string, error) {
		gotModel, gotPrompt = model, prompt
		return "x + 1\n-----SPLIT-----\nx * 2", nil
	})

	got, err := g.Complete(context.Background(), domain.Prompt{Code: "x", Offset: 1, Language: "javascript"})
	if err != nil {
		t.Fatal(err)
	}
	if gotModel != DefaultModel {
		t.Errorf("model = %q", gotModel)
	}
	if !strings.Contains(gotPrompt, "--- BEGIN CODE ---\nx\n") {
		t.Errorf("prompt = %q", gotPrompt)
	}
	if !reflect.DeepEqual(got, []string{"x + 1", "x * 2"}) {
		t.Errorf("suggestions = %q", got)
	}
}

func TestGeminiCompleteError(t *testing.T) {
	boom := errors.New("quota exceeded")
	g := newGeminiGenerator("gemini-pro", func(ctx context.Context, model, prompt string) (string, error) {
		return "", boom
	})

	if _, err := g.Complete(context.Background(), domain.Prompt{}); !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}
