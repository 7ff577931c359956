package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/latexify/pkg/document"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// LayerPickerModel - Interactive selection of layers
// =============================================================================

// LayerPickerModel is the bubbletea model for choosing a document's selection.
// Space toggles the layer under the cursor; enter confirms.
type LayerPickerModel struct {
	Doc       *document.Document
	Cursor    int
	Checked   map[string]bool
	Confirmed bool
	Height    int
	Offset    int
}

// NewLayerPickerModel creates a picker with doc's current selection checked.
func NewLayerPickerModel(doc *document.Document) LayerPickerModel {
	checked := make(map[string]bool, len(doc.Selection))
	for _, id := range doc.Selection {
		checked[id] = true
	}
	return LayerPickerModel{
		Doc:     doc,
		Checked: checked,
		Height:  15,
	}
}

// SelectedIDs returns the checked layer IDs in document order.
func (m LayerPickerModel) SelectedIDs() []string {
	ids := []string{}
	for _, l := range m.Doc.Layers {
		if m.Checked[l.ID] {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func (m LayerPickerModel) Init() tea.Cmd {
	return nil
}

func (m LayerPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Doc.Layers)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			if len(m.Doc.Layers) == 0 {
				return m, nil
			}
			id := m.Doc.Layers[m.Cursor].ID
			checked := make(map[string]bool, len(m.Checked)+1)
			for k, v := range m.Checked {
				checked[k] = v
			}
			checked[id] = !checked[id]
			m.Checked = checked
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m LayerPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Layers"))
	b.WriteString(" ")
	b.WriteString(listDimStyle.Render(m.Doc.Name))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  ⏎ confirm  q cancel"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Doc.Layers) {
		end = len(m.Doc.Layers)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		l := m.Doc.Layers[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if m.Checked[l.ID] {
			check = "[" + iconSuccess + "]"
		}
		kind := string(l.Kind)
		if l.Kind == document.KindGroup {
			kind = "latex"
		}
		rows = append(rows, []string{cursor, check, kind, l.Name, truncate(layerText(m.Doc, l), 32)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "", "Kind", "Name", "Content").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}

			idx := m.Offset + row
			if idx >= len(m.Doc.Layers) {
				return lipgloss.NewStyle()
			}
			l := m.Doc.Layers[idx]

			base := lipgloss.NewStyle()
			if col == 4 {
				base = base.Foreground(colorGray)
			}
			if idx == m.Cursor {
				base = base.Bold(true)
			}
			if m.Checked[l.ID] {
				return base.Foreground(colorGreen)
			}
			if l.Kind == document.KindOther {
				return base.Foreground(colorDim)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]  %d selected", m.Cursor+1, len(m.Doc.Layers), len(m.SelectedIDs()))))

	return b.String()
}
