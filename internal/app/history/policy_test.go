package history

import (
	"testing"

	"github.com/mparedes/chatstore/internal/domain"
)

func stamped(role domain.Role, text string, ts int64) domain.TimestampedMessage {
	return domain.TimestampedMessage{Message: domain.NewTextMessage(role, text), Timestamp: ts}
}

func TestShouldSuppress(t *testing.T) {
	conv := []domain.TimestampedMessage{
		stamped(domain.RoleUser, "hi", 1),
		stamped(domain.RoleAssistant, "hello", 2),
	}

	cases := []struct {
		name     string
		existing []domain.TimestampedMessage
		incoming domain.Message
		want     bool
	}{
		{"empty conversation", nil, domain.NewTextMessage(domain.RoleUser, "hi"), false},
		{"different role", conv, domain.NewTextMessage(domain.RoleUser, "again"), false},
		{"same role as last", conv, domain.NewTextMessage(domain.RoleAssistant, "retry"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := shouldSuppress(tc.existing, tc.incoming); got != tc.want {
				t.Fatalf("shouldSuppress = %v, want %v", got, tc.want)
			}
		})
	}
}

func intPtr(n int) *int { return &n }

func TestTrimConversation(t *testing.T) {
	conv := []domain.TimestampedMessage{
		stamped(domain.RoleUser, "a", 1),
		stamped(domain.RoleAssistant, "b", 2),
		stamped(domain.RoleUser, "c", 3),
	}

	cases := []struct {
		name    string
		maxSize *int
		wantLen int
		wantOld string // first text after trimming
	}{
		{"nil keeps all", nil, 3, "a"},
		{"larger than len keeps all", intPtr(10), 3, "a"},
		{"exact len keeps all", intPtr(3), 3, "a"},
		{"drops oldest", intPtr(2), 2, "b"},
		{"one keeps newest", intPtr(1), 1, "c"},
		{"zero drops all", intPtr(0), 0, ""},
		{"negative drops all", intPtr(-1), 0, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := trimConversation(conv, tc.maxSize)
			if len(got) != tc.wantLen {
				t.Fatalf("len = %d, want %d", len(got), tc.wantLen)
			}
			if tc.wantLen > 0 && got[0].Content[0].Text != tc.wantOld {
				t.Fatalf("oldest kept = %q, want %q", got[0].Content[0].Text, tc.wantOld)
			}
			// Order must be preserved.
			for i := 1; i < len(got); i++ {
				if got[i].Timestamp < got[i-1].Timestamp {
					t.Fatalf("trim reordered entries: %v", got)
				}
			}
		})
	}
}
