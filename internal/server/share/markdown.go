package share

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taxvoice/internal/server/models"
	"github.com/google/uuid"
)

const MarkdownContentType = "text/markdown; charset=utf-8"

// ObjectKey returns a fresh key per export so earlier links stay valid.
func ObjectKey(c *models.Conversation) string {
	return fmt.Sprintf("shares/%s/%s/%s.md", c.UserID, c.ID, uuid.NewString())
}

// Markdown renders a conversation as a standalone document.
func Markdown(c *models.Conversation) []byte {
	var b strings.Builder

	b.WriteString("# Tax conversation\n\n")
	fmt.Fprintf(&b, "- Started: %s\n", c.StartTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Ended: %s\n", c.EndTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", (time.Duration(c.Duration) * time.Second).String())
	fmt.Fprintf(&b, "- Status: %s\n\n", c.Status)

	b.WriteString("## Summary\n\n")
	b.WriteString(strings.TrimSpace(c.Summary))
	b.WriteString("\n\n## Transcript\n\n")
	b.WriteString(strings.TrimSpace(c.Transcript))
	b.WriteString("\n")

	return []byte(b.String())
}
