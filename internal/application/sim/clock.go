package sim

import "sync"

// Clock es el reloj lógico de la simulación: sólo avanza cuando un paso del
// escenario lo avanza. Implementa ports.Clock.
type Clock struct {
	mu  sync.Mutex
	now int64
}

// NewClock crea el reloj arrancado en start (segundos unix lógicos).
func NewClock(start int64) *Clock {
	return &Clock{now: start}
}

// Now devuelve el timestamp lógico actual.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance avanza el reloj seconds segundos. Avances no positivos se ignoran:
// el tiempo lógico nunca retrocede.
func (c *Clock) Advance(seconds int64) {
	if seconds <= 0 {
		return
	}
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}
