package ast

type SleepMode int

const (
	SleepNow SleepMode = iota
	SleepRelative
	SleepAbsolute
)

// sleepChunk bounds how long a single SleepMicros call blocks for, so the
// terminate flag can be polled between chunks instead of oversleeping past
// an interrupt.
const sleepChunk = uint64(50_000)

// Sleep has three modes: with no expression it returns the current
// monotonic time in microseconds; with a relative expression it sleeps
// that many milliseconds past now; with an absolute expression it sleeps
// until the given monotonic microsecond instant.
type Sleep struct {
	Base
	mode SleepMode
	expr Node
}

func NewSleepNow(loc Location) *Sleep {
	return &Sleep{Base: NewBase(loc), mode: SleepNow}
}

func NewSleepRelative(loc Location, rt Runtime, millis Node) *Sleep {
	n := &Sleep{Base: NewBase(loc), mode: SleepRelative}
	n.expr = n.AddChild(rt, millis)
	return n
}

func NewSleepAbsolute(loc Location, rt Runtime, untilMicros Node) *Sleep {
	n := &Sleep{Base: NewBase(loc), mode: SleepAbsolute}
	n.expr = n.AddChild(rt, untilMicros)
	return n
}

func (n *Sleep) Execute(rt Runtime) (uint64, error) {
	if n.mode == SleepNow {
		return rt.NowMicros(), nil
	}

	v, err := n.expr.Execute(rt)
	if err != nil {
		return 0, err
	}

	var target uint64
	if n.mode == SleepRelative {
		target = rt.NowMicros() + v*1000
	} else {
		target = v
	}

	for {
		now := rt.NowMicros()
		if now >= target {
			break
		}
		if rt.Terminated() {
			return 0, Raise(SigTerminate, n.Loc())
		}
		remaining := target - now
		if remaining > sleepChunk {
			remaining = sleepChunk
		}
		rt.SleepMicros(remaining)
	}
	return target, nil
}

type Break struct{ Base }

func NewBreak(loc Location) *Break { return &Break{Base: NewBase(loc)} }

func (n *Break) Execute(Runtime) (uint64, error) { return 0, Raise(SigBreak, n.Loc()) }

type Exit struct{ Base }

func NewExit(loc Location) *Exit { return &Exit{Base: NewBase(loc)} }

func (n *Exit) Execute(Runtime) (uint64, error) { return 0, Raise(SigExit, n.Loc()) }

type Quit struct{ Base }

func NewQuit(loc Location) *Quit { return &Quit{Base: NewBase(loc)} }

func (n *Quit) Execute(Runtime) (uint64, error) { return 0, Raise(SigQuit, n.Loc()) }
