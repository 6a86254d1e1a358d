package stream

// sweepRetention enforces each topic's max_age/max_bytes bound,
// dropping the oldest records and advancing baseOffset. Any group
// committed below the new floor is pulled forward to stay consistent
// with spec §4.5 ("dropping advances each group's committed offset
// forward to the new minimum retained offset if it was lower").
func (e *Engine) sweepRetention() {
	now := e.clock.Now()
	for _, t := range e.topics {
		for _, p := range t.partitions {
			dropped := false

			for len(p.records) > 0 {
				head := p.records[0]
				ageExceeded := t.retention.MaxAge > 0 && now.Sub(head.Timestamp) > t.retention.MaxAge
				bytesExceeded := t.retention.MaxBytes > 0 && p.bytes > t.retention.MaxBytes
				if !ageExceeded && !bytesExceeded {
					break
				}
				p.bytes -= int64(len(head.Payload))
				p.records = p.records[1:]
				p.baseOffset++
				dropped = true
			}

			if dropped {
				for _, g := range t.groups {
					if g.committed[p.id] < p.baseOffset {
						g.committed[p.id] = p.baseOffset
					}
				}
			}
		}
	}
}
