// Package scorer provides deterministic priority scoring for communication
// items such as emails, meeting requests and messages.
//
// Each item is scored on three bounded dimensions that add up to a 0-100
// total:
//   - Deadline proximity, 0-50 points, from a configurable step function
//   - Sender rank, 0-30 points, round(rank * 30)
//   - Urgency signals, 0-20 points, confidence-weighted sum of detected cues
//
// Features:
//   - Pure, side-effect-free scoring safe for concurrent use
//   - Batch scoring with per-item failure isolation and stable ranking
//   - One explanation sentence per dimension plus structured factors
//   - YAML-loadable configuration with chainable overrides
//   - Prometheus metrics integration
//
// Basic usage:
//
//	s, err := scorer.New(scorer.NewDefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := s.Score(scorer.ScoringInput{
//	    SenderRank:    0.9,
//	    ReferenceTime: time.Now(),
//	})
package scorer
