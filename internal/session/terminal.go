package session

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"groupchat/internal/model"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Terminal 把会话渲染到终端
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
	self    string
}

func NewTerminal(out io.Writer, self string, colours bool) *Terminal {
	return &Terminal{out: out, self: self, colours: colours}
}

func (t *Terminal) paint(style color.Style, s string) string {
	if !t.colours {
		return s
	}
	return style.Render(s)
}

func (t *Terminal) ShowGroups(groups []model.Group) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(groups) == 0 {
		fmt.Fprintln(t.out, "You are not a member of any group yet.")
		return
	}

	table := tablewriter.NewWriter(t.out)
	table.SetHeader([]string{"ID", "Name", "Creator", "Members", "Privacy"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, g := range groups {
		table.Append([]string{g.ID, g.Name, g.Creator, strconv.Itoa(len(g.Members)), string(g.Privacy)})
	}
	table.Render()
}

func (t *Terminal) ShowGroup(group *GroupView) {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := fmt.Sprintf("====== %s ======", group.Name)
	fmt.Fprintln(t.out, t.paint(color.New(color.OpBold, color.FgCyan), header))

	members := make([]string, 0, len(group.Members))
	for m := range group.Members {
		members = append(members, m)
	}
	sort.Strings(members)
	fmt.Fprintf(t.out, "creator: %s  members: %v\n", group.Creator, members)
	if group.CanInvite {
		fmt.Fprintln(t.out, t.paint(color.New(color.FgGray), "type /invite <username> to add a member"))
	}
}

func (t *Terminal) ShowMessages(messages []model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeMessages(messages)
}

// RedrawMessages 清屏后按顺序输出全部消息
func (t *Terminal) RedrawMessages(messages []model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.colours {
		fmt.Fprint(t.out, "\033[H\033[2J")
	} else {
		fmt.Fprintln(t.out, "------")
	}
	t.writeMessages(messages)
}

func (t *Terminal) writeMessages(messages []model.Message) {
	for _, m := range messages {
		author := color.New(color.FgGreen)
		if m.Author == t.self {
			author = color.New(color.FgMagenta)
		}
		fmt.Fprintf(t.out, "%s %s: %s\n",
			t.paint(color.New(color.FgGray), m.CreatedAt.Local().Format(time.TimeOnly)),
			t.paint(author, m.Author),
			m.Text)
	}
}

func (t *Terminal) Alert(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.paint(color.New(color.FgRed), "! "+msg))
}
