package app

import "quizmint-service/internal/domain"

// CountCorrect recomputes a submission score against the authoritative
// question set. Only indices present in both slices can match, so a short or
// over-long answer slice simply scores fewer hits; it never errors.
func CountCorrect(answers []int, questions []domain.Question) int {
	score := 0
	for i, q := range questions {
		if i >= len(answers) {
			break
		}
		if answers[i] == q.CorrectAnswer {
			score++
		}
	}
	return score
}
