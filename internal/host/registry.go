package host

import "github.com/agenthost/agenthost/internal/toolcall"

// buildToolRegistry wires every concrete tool against the Host's own
// components, the way cmd/gopherclaw/cmd_serve.go registers its runtime
// tools against the daemon's stores before handing the registry to the
// agentic turn loop.
func buildToolRegistry(h *Host) *toolcall.Registry {
	reg := toolcall.NewRegistry()
	reg.Register(&toolcall.SendMessageTool{Adapter: h.adapter})
	reg.Register(&toolcall.SendFileTool{Adapter: h.adapter})
	reg.Register(&toolcall.DelegateTaskTool{Manager: h.Tasks})
	reg.Register(&toolcall.CancelTaskTool{Manager: h.Tasks})
	reg.Register(&toolcall.ScheduleCreateTool{Manager: h.Schedules})
	reg.Register(&toolcall.MemoryAddTool{Store: h.Memory})
	return reg
}
