//go:build !no_automation

package automation

import (
	"time"

	lua "github.com/yuin/gopher-lua"
)

// registerSystemModule registers the `system` global table in a Lua state.
func registerSystemModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()

	mod.RawSetString("datetime", L.NewFunction(systemDatetime))
	mod.RawSetString("time_between", L.NewFunction(systemTimeBetween))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return systemLog(L, vm, e)
	}))

	L.SetGlobal("system", mod)
}

// system.datetime([component]) returns a date/time component, or a table
// of all of them when called without arguments.
func systemDatetime(L *lua.LState) int {
	now := time.Now()
	if L.GetTop() == 0 {
		t := L.NewTable()
		t.RawSetString("hour", lua.LNumber(now.Hour()))
		t.RawSetString("minute", lua.LNumber(now.Minute()))
		t.RawSetString("second", lua.LNumber(now.Second()))
		t.RawSetString("weekday", lua.LNumber(now.Weekday()))
		t.RawSetString("day", lua.LNumber(now.Day()))
		t.RawSetString("month", lua.LNumber(now.Month()))
		t.RawSetString("year", lua.LNumber(now.Year()))
		t.RawSetString("timestamp", lua.LNumber(now.Unix()))
		L.Push(t)
		return 1
	}

	component := L.CheckString(1)
	switch component {
	case "hour":
		L.Push(lua.LNumber(now.Hour()))
	case "minute":
		L.Push(lua.LNumber(now.Minute()))
	case "second":
		L.Push(lua.LNumber(now.Second()))
	case "weekday":
		L.Push(lua.LNumber(now.Weekday()))
	case "day":
		L.Push(lua.LNumber(now.Day()))
	case "month":
		L.Push(lua.LNumber(now.Month()))
	case "year":
		L.Push(lua.LNumber(now.Year()))
	case "timestamp":
		L.Push(lua.LNumber(now.Unix()))
	case "time_str":
		L.Push(lua.LString(now.Format("15:04:05")))
	case "date_str":
		L.Push(lua.LString(now.Format("2006-01-02")))
	default:
		L.ArgError(1, "unknown component: "+component)
		return 0
	}
	return 1
}

// system.time_between(from_hour, to_hour) checks if the current hour is in
// [from, to). Ranges wrap past midnight when from > to.
func systemTimeBetween(L *lua.LState) int {
	from := L.CheckInt(1)
	to := L.CheckInt(2)
	L.Push(lua.LBool(hourBetween(time.Now().Hour(), from, to)))
	return 1
}

func hourBetween(hour, from, to int) bool {
	if from <= to {
		return hour >= from && hour < to
	}
	return hour >= from || hour < to
}

// system.log([level,] msg)
func systemLog(L *lua.LState, vm *scriptVM, e *Engine) int {
	level, msg := "info", L.CheckString(1)
	if L.GetTop() >= 2 {
		level, msg = msg, L.CheckString(2)
	}

	switch level {
	case "debug":
		e.logger.Debug("script log", "msg", msg)
	case "warn":
		e.logger.Warn("script log", "msg", msg)
	case "error":
		e.logger.Error("script log", "msg", msg)
	default:
		e.logger.Info("script log", "msg", msg)
	}
	vm.log("[" + level + "] " + msg)
	return 0
}
