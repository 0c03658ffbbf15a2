package sim

import "dxmsg/pkg/message"

// Ping is sent to every actor once per tick.
type Ping struct {
	message.Untargeted
	Tick int
}

// Heal restores health of the targeted actor.
type Heal struct {
	message.Targeted
	Amount int
}

// Damage is broadcast by an attacking actor and hurts every other living
// actor.
type Damage struct {
	message.Broadcast
	Amount int
}
