package service

// WithoutTicker leaves engines without their periodic loop so tests decide
// when evaluations happen.
func WithoutTicker() Option {
	return func(s *Service) {
		s.ticking = false
	}
}

// EvaluateNow runs one evaluation of a session at the service clock.
func (s *Service) EvaluateNow(sessionID string) {
	sess, err := s.session(sessionID)
	if err != nil {
		panic(err)
	}
	sess.engine.Evaluate(s.clock.Now(), nil)
}
