package tui

// Binding maps a key to a demo action.
type Binding struct {
	Key   string
	Label string
	// Action is sent with Send, or with Run when Async is set.
	Action string
	Async  bool
}

// BindingsFor returns the key bindings of the named demo.
func BindingsFor(demoName string) []Binding {
	switch demoName {
	case "counter":
		return []Binding{
			{Key: "+", Label: "increase", Action: "increase"},
			{Key: "-", Label: "decrease", Action: "decrease"},
			{Key: "l", Label: "log count", Action: "logCount"},
			{Key: "r", Label: "reset", Action: "resetState"},
			{Key: "a", Label: "increase later", Action: "increaseLater", Async: true},
		}
	case "loader":
		return []Binding{
			{Key: "enter", Label: "request data", Action: "requestData"},
		}
	default:
		return nil
	}
}
