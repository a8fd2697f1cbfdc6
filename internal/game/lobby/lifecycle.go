package lobby

import "go.uber.org/zap"

// stepLocked runs one control-tick lifecycle evaluation for l.
// Status transitions happen here and nowhere else.
//
// Postcondition: Returns true if the lobby's status changed.
func (c *Coordinator) stepLocked(l *Lobby, dt float64) bool {
	switch l.Status {
	case StatusMenu:
		return c.checkStartLocked(l)
	case StatusGame:
		return c.checkProgressLocked(l, dt)
	}
	return false
}

// checkStartLocked transitions menu → game when at least two players are
// present and every one of them is ready.
func (c *Coordinator) checkStartLocked(l *Lobby) bool {
	if len(l.Players) < 2 {
		return false
	}
	for _, p := range l.Players {
		if !p.Ready {
			return false
		}
	}

	l.Status = StatusGame
	l.TimeLeft = c.cfg.MatchDuration.Seconds()
	c.clearReadyLocked(l)
	if pub, ok := c.directory[l.ID]; ok {
		pub.Status = StatusGame
	}

	c.logger.Info("match started",
		zap.String("lobby", l.ID),
		zap.Int("players", len(l.Players)),
		zap.String("arena", l.Arena),
		zap.Float64("time_left", l.TimeLeft),
	)
	return true
}

// checkProgressLocked decrements the countdown and transitions game → menu
// when time runs out or at most one player remains alive.
func (c *Coordinator) checkProgressLocked(l *Lobby, dt float64) bool {
	l.TimeLeft -= dt

	alive := 0
	for _, p := range l.Players {
		if p.Alive() {
			alive++
		}
	}
	if l.TimeLeft > 0 && alive > 1 {
		return false
	}

	l.Status = StatusMenu
	l.TimeLeft = 0
	c.clearReadyLocked(l)
	if pub, ok := c.directory[l.ID]; ok {
		pub.Status = StatusMenu
	}

	c.logger.Info("match ended",
		zap.String("lobby", l.ID),
		zap.Int("alive", alive),
		zap.Int("players", len(l.Players)),
	)
	return true
}

// clearReadyLocked resets every player's readiness flag in the lobby and
// its directory mirror.
func (c *Coordinator) clearReadyLocked(l *Lobby) {
	pub := c.directory[l.ID]
	for connID, p := range l.Players {
		p.Ready = false
		if pub != nil {
			entry := pub.Players[connID]
			entry.Ready = false
			pub.Players[connID] = entry
		}
	}
}
