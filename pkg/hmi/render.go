package hmi

import (
	"fmt"

	"github.com/backkem/matter-hmi/pkg/binding"
	"github.com/backkem/matter-hmi/pkg/controller"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	offlineStyle = cellStyle.Foreground(lipgloss.Color("#f38ba8"))
	onlineStyle  = cellStyle.Foreground(lipgloss.Color("#a6e3a1"))
)

const colConnection = 3

// Render draws the device table for the given peers. Peers without a row
// yet are shown with unknown state.
func (d *DeviceTable) Render(peers []controller.PeerStatus) string {
	rows := make([][]string, 0, len(peers))
	conns := make([]Connection, 0, len(peers))
	for _, ps := range peers {
		r, _ := d.Row(ps.Index)
		conns = append(conns, r.Connection)
		rows = append(rows, []string{
			fmt.Sprintf("%d", ps.Index),
			ps.Entry.Kind.String(),
			peerLabel(ps.Entry),
			connectionLabel(ps.Entry, r),
			networkLabel(r),
			lightLabel(r),
			ps.State.String(),
			failureLabel(r),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "KIND", "PEER", "STATUS", "NETWORK", "LIGHT", "SUBSCRIPTION", "LAST FAILURE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == colConnection && row >= 0 && row < len(conns) {
				switch conns[row] {
				case ConnectionOnline:
					return onlineStyle
				case ConnectionOffline:
					return offlineStyle
				}
			}
			return cellStyle
		})
	return t.String()
}

func peerLabel(e binding.Entry) string {
	if e.Kind == binding.KindMulticast {
		return fmt.Sprintf("%d/%s", e.FabricIndex, e.GroupID)
	}
	return fmt.Sprintf("%s %s", e.Peer(), e.RemoteEndpoint)
}

func connectionLabel(e binding.Entry, r Row) string {
	// Group members are never connected to.
	if e.Kind == binding.KindMulticast {
		return "-"
	}
	return r.Connection.String()
}

func networkLabel(r Row) string {
	if !r.HasNetwork {
		return "-"
	}
	return r.Network.String()
}

func lightLabel(r Row) string {
	if !r.HasState {
		return "?"
	}
	return onOffLabel(r.On)
}

func failureLabel(r Row) string {
	if r.LastFailure == nil {
		return "-"
	}
	return fmt.Sprintf("%s: %v", r.FailedOp, r.LastFailure)
}
