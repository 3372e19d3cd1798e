package world

// WinState classifies how the story ended, if it has.
type WinState string

const (
	WinIncomplete WinState = "incomplete"
	WinBadEnd     WinState = "bad_end"
	WinGoodEnd    WinState = "good_end"
)

// ComputeWin derives the ending from container contents. Handing the knife
// to the sheriff ends the story; it ends well only if the rope is back with
// the vendor at that moment.
func ComputeWin(contents map[string][]string) WinState {
	ws := WorldState{ContainerContents: contents}
	if !ws.Contains("sheriff", "knife") {
		return WinIncomplete
	}
	if ws.Contains("vendor", "rope") {
		return WinGoodEnd
	}
	return WinBadEnd
}
