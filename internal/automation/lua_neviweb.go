//go:build !no_automation

package automation

import (
	"context"
	"strconv"
	"time"

	"neviweb-go-home/internal/coordinator"

	lua "github.com/yuin/gopher-lua"
)

const (
	maxHandlersPerScript = 100
	callTimeout          = 30 * time.Second
)

// registerNeviwebModule registers the `neviweb` global table in a Lua state.
func registerNeviwebModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()
	L.SetFuncs(mod, map[string]lua.LGFunction{
		"on":      func(L *lua.LState) int { return neviwebOn(L, vm, e) },
		"call":    func(L *lua.LState) int { return neviwebCall(L, vm, e) },
		"state":   func(L *lua.LState) int { return neviwebState(L, e) },
		"devices": func(L *lua.LState) int { return neviwebDevices(L, e) },
		"after":   func(L *lua.LState) int { return neviwebAfter(L, vm, e) },
		"notify":  func(L *lua.LState) int { return neviwebNotify(L, vm, e) },
		"log": func(L *lua.LState) int {
			msg := L.CheckString(1)
			e.logger.Info("script log", "msg", msg)
			vm.log(msg)
			return 0
		},
	})
	L.SetGlobal("neviweb", mod)
}

// resolveArg resolves a device given as an id number or a name.
func resolveArg(L *lua.LState, e *Engine, n int) (int, error) {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		return e.coord.Resolve(strconv.Itoa(int(v)))
	case lua.LString:
		return e.coord.Resolve(string(v))
	}
	L.ArgError(n, "device id or name expected")
	return 0, nil
}

// neviweb.on(event_type, [device], callback)
func neviwebOn(L *lua.LState, vm *scriptVM, e *Engine) int {
	eventType := L.CheckString(1)
	h := luaEventHandler{eventType: eventType}

	if L.GetTop() >= 3 {
		id, err := resolveArg(L, e, 2)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		h.device = id
		h.fn = L.CheckFunction(3)
	} else {
		h.fn = L.CheckFunction(2)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.handlers) >= maxHandlersPerScript {
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	return 0
}

// neviweb.call(service, device, [args]) -> ok, err
func neviwebCall(L *lua.LState, vm *scriptVM, e *Engine) int {
	service := L.CheckString(1)
	id, err := resolveArg(L, e, 2)
	if err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	args := coordinator.Args{}
	if tbl, ok := L.Get(3).(*lua.LTable); ok {
		tbl.ForEach(func(k, v lua.LValue) {
			args[k.String()] = luaToGo(v)
		})
	}

	ctx, cancel := context.WithTimeout(vm.ctx, callTimeout)
	defer cancel()
	if err := e.coord.Call(ctx, id, service, args); err != nil {
		e.logger.Warn("script service call failed", "service", service, "device", id, "err", err)
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// neviweb.state(device) -> table or nil
func neviwebState(L *lua.LState, e *Engine) int {
	id, err := resolveArg(L, e, 1)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	snap, err := e.coord.Device(id)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(goToLua(L, snap))
	return 1
}

// neviweb.devices() -> list of {id, name, friendly_name, sku, family, network}
func neviwebDevices(L *lua.LState, e *Engine) int {
	tbl := L.NewTable()
	for i, snap := range e.coord.Devices() {
		d := L.NewTable()
		d.RawSetString("id", lua.LNumber(snap.ID))
		d.RawSetString("name", lua.LString(snap.Name))
		d.RawSetString("friendly_name", lua.LString(snap.FriendlyName))
		d.RawSetString("sku", lua.LString(snap.SKU))
		d.RawSetString("family", lua.LString(snap.Family))
		d.RawSetString("network", lua.LString(snap.Network))
		tbl.RawSetInt(i+1, d)
	}
	L.Push(tbl)
	return 1
}

// neviweb.after(seconds, callback)
func neviwebAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()

	return 0
}

// neviweb.notify(title, message)
func neviwebNotify(L *lua.LState, vm *scriptVM, e *Engine) int {
	title := L.CheckString(1)
	msg := L.CheckString(2)
	vm.log("notify: " + title + ": " + msg)

	if e.notifier == nil {
		e.logger.Warn("neviweb.notify: no notifier configured")
		return 0
	}
	ctx, cancel := context.WithTimeout(vm.ctx, callTimeout)
	defer cancel()
	if err := e.notifier.Send(ctx, title, msg); err != nil {
		e.logger.Warn("script notification failed", "err", err)
	}
	return 0
}
