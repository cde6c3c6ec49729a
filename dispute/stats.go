package dispute

import "context"

// Statistics tallies dispute counts per status and type, plus the mean
// resolution latency in hours, in a single pass. splitID narrows the
// population when non-empty.
func (s *Service) Statistics(ctx context.Context, splitID string) (Statistics, error) {
	records, err := s.repo.ListAll(ctx, splitID)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{
		Total:    len(records),
		ByStatus: make(map[Status]int, len(Statuses)),
		ByType:   make(map[Type]int, len(Types)),
	}
	for _, status := range Statuses {
		stats.ByStatus[status] = 0
	}
	for _, t := range Types {
		stats.ByType[t] = 0
	}

	var (
		totalResolutionMs float64
		resolvedCount     int
	)
	for _, rec := range records {
		stats.ByStatus[rec.Status]++
		stats.ByType[rec.Type]++

		if rec.ResolvedAt != nil {
			totalResolutionMs += float64(rec.ResolvedAt.Sub(rec.CreatedAt).Milliseconds())
			resolvedCount++
		}
	}

	if resolvedCount > 0 {
		stats.AverageResolutionTime = totalResolutionMs / float64(resolvedCount) / 1000 / 60 / 60
	}

	return stats, nil
}
