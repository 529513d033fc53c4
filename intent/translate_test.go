package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/navbuddy/navbuddy/llm"
)

type fakeClient struct {
	text string
	err  error
	last llm.Request
}

func (f *fakeClient) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	f.last = req
	if f.err != nil {
		return llm.Result{}, f.err
	}
	return llm.Result{Text: f.text}, nil
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		name     string
		reply    string
		replyErr error
		wantKind OpKind
		wantErr  error
	}{
		{
			name:     "plain_json",
			reply:    `{"kind":"list","sources":["~/downloads"],"summary":"list downloads","confidence":0.95}`,
			wantKind: OpList,
		},
		{
			name: "fenced_json",
			reply: "Here is the operation:\n```json\n" +
				`{"kind":"read","sources":["/home/user/notes.txt"],"confidence":0.9}` +
				"\n```\n",
			wantKind: OpRead,
		},
		{
			name:     "high_confidence_delete",
			reply:    `{"kind":"delete","sources":["/home/user/old.log"],"confidence":0.92}`,
			wantKind: OpDelete,
		},
		{
			name:     "oracle_down",
			replyErr: errors.New("connection refused"),
			wantErr:  ErrOracleUnavailable,
		},
		{
			name:    "not_json",
			reply:   "sure, deleting everything now!",
			wantErr: ErrUnparsableResponse,
		},
		{
			name:    "unknown_kind",
			reply:   `{"kind":"format","sources":["/dev/sda"],"confidence":0.99}`,
			wantErr: ErrUnparsableResponse,
		},
		{
			name:    "move_missing_destination",
			reply:   `{"kind":"move","sources":["/home/user/a.txt"],"confidence":0.9}`,
			wantErr: ErrUnparsableResponse,
		},
		{
			name:    "oracle_asks",
			reply:   `{"ask":true,"reason":"delete or archive?"}`,
			wantErr: ErrAmbiguousIntent,
		},
		{
			name:    "low_confidence_delete",
			reply:   `{"kind":"delete","sources":["/home/user/old.log"],"confidence":0.4}`,
			wantErr: ErrAmbiguousIntent,
		},
		{
			name:    "low_confidence_execute",
			reply:   `{"kind":"execute","command":"ls","sources":["/home/user"],"confidence":0.5}`,
			wantErr: ErrAmbiguousIntent,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeClient{text: tc.reply, err: tc.replyErr}
			tr := &Translator{Client: client, Model: "test-model"}

			p, err := tr.Translate(context.Background(), "do the thing", Snapshot{WorkingDir: "/home/user"})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Translate: %v", err)
			}
			if p.Kind != tc.wantKind {
				t.Fatalf("kind = %s, want %s", p.Kind, tc.wantKind)
			}
			if !client.last.ForceJSON {
				t.Fatal("request did not force JSON output")
			}
			if client.last.Model != "test-model" {
				t.Fatalf("model = %q, want test-model", client.last.Model)
			}
		})
	}
}

func TestTranslateLowConfidenceReadPasses(t *testing.T) {
	// Confidence gating only applies to kinds that always confirm; a
	// hesitant read is harmless.
	client := &fakeClient{text: `{"kind":"read","sources":["/home/user/a.txt"],"confidence":0.3}`}
	tr := &Translator{Client: client}

	p, err := tr.Translate(context.Background(), "maybe show me a.txt", Snapshot{})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if p.Kind != OpRead {
		t.Fatalf("kind = %s, want read", p.Kind)
	}
}

func TestTranslateEmptyRequest(t *testing.T) {
	tr := &Translator{Client: &fakeClient{text: "{}"}}
	if _, err := tr.Translate(context.Background(), "   ", Snapshot{}); !errors.Is(err, ErrUnparsableResponse) {
		t.Fatalf("error = %v, want ErrUnparsableResponse", err)
	}
}

func TestTranslateNoClient(t *testing.T) {
	tr := &Translator{}
	if _, err := tr.Translate(context.Background(), "list files", Snapshot{}); !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("error = %v, want ErrOracleUnavailable", err)
	}
}
