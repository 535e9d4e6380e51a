package thread

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare id", in: "abc123@mail.example.com", want: "abc123@mail.example.com"},
		{name: "angle brackets stripped", in: "<abc123@mail.example.com>", want: "abc123@mail.example.com"},
		{name: "whitespace trimmed", in: "  <abc@x.com>  ", want: "abc@x.com"},
		{name: "lowercased", in: "<ABC@X.COM>", want: "abc@x.com"},
		{name: "empty", in: "", want: ""},
		{name: "only brackets", in: "<>", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConversationID(t *testing.T) {
	tests := []struct {
		name       string
		messageID  string
		inReplyTo  []string
		references []string
		want       string
	}{
		{
			name:      "no reply headers uses own id",
			messageID: "<m1@x.com>",
			want:      "m1@x.com",
		},
		{
			name:      "in-reply-to preferred over own id",
			messageID: "<m2@x.com>",
			inReplyTo: []string{"<m1@x.com>"},
			want:      "m1@x.com",
		},
		{
			name:       "first reference preferred over in-reply-to",
			messageID:  "<m3@x.com>",
			inReplyTo:  []string{"<m2@x.com>"},
			references: []string{"<m1@x.com>", "<m2@x.com>"},
			want:       "m1@x.com",
		},
		{
			name:       "empty references fall through",
			messageID:  "<m2@x.com>",
			inReplyTo:  []string{"<m1@x.com>"},
			references: []string{"", "  "},
			want:       "m1@x.com",
		},
		{
			name:      "inconsistent casing still converges",
			messageID: "<M2@X.com>",
			inReplyTo: []string{"<M1@X.COM>"},
			want:      "m1@x.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConversationID(tt.messageID, tt.inReplyTo, tt.references)
			if got != tt.want {
				t.Errorf("ConversationID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConversationIDSameThreadConverges(t *testing.T) {
	// First message, a reply carrying In-Reply-To only, and a later
	// reply carrying the full References chain must all map to the
	// same conversation.
	root := ConversationID("<m1@x.com>", nil, nil)
	reply := ConversationID("<m2@x.com>", []string{"<m1@x.com>"}, nil)
	later := ConversationID("<m3@x.com>", []string{"<m2@x.com>"}, []string{"<m1@x.com>", "<m2@x.com>"})

	if root != reply || reply != later {
		t.Errorf("thread did not converge: root=%q reply=%q later=%q", root, reply, later)
	}
}

func TestConversationIDBoundedLookback(t *testing.T) {
	refs := make([]string, 1000)
	for i := range refs {
		refs[i] = "" // force the loop to walk entries
	}
	got := ConversationID("<m1@x.com>", nil, refs)
	if got != "m1@x.com" {
		t.Errorf("ConversationID() = %q, want fallback to own id", got)
	}
}

func TestExtractHeaders(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    Headers
	}{
		{
			name:    "nil payload",
			payload: nil,
			want:    Headers{InReplyTo: []string{}, References: []string{}},
		},
		{
			name:    "empty payload",
			payload: map[string]any{},
			want:    Headers{InReplyTo: []string{}, References: []string{}},
		},
		{
			name: "snake case strings",
			payload: map[string]any{
				"in_reply_to": "<m1@x.com>",
				"references":  "<m0@x.com> <m1@x.com>",
			},
			want: Headers{InReplyTo: []string{"m1@x.com"}, References: []string{"m0@x.com", "m1@x.com"}},
		},
		{
			name: "header case list of any",
			payload: map[string]any{
				"In-Reply-To": []any{"<m1@x.com>"},
				"References":  []any{"<m0@x.com>", "<m1@x.com>"},
			},
			want: Headers{InReplyTo: []string{"m1@x.com"}, References: []string{"m0@x.com", "m1@x.com"}},
		},
		{
			name: "nested headers object",
			payload: map[string]any{
				"headers": map[string]any{
					"In-Reply-To": "<m1@x.com>",
				},
			},
			want: Headers{InReplyTo: []string{"m1@x.com"}, References: []string{}},
		},
		{
			name: "garbage values ignored",
			payload: map[string]any{
				"in_reply_to": 42,
				"references":  map[string]any{"x": "y"},
			},
			want: Headers{InReplyTo: []string{}, References: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractHeaders(tt.payload)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractHeaders() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
