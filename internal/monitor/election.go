/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package monitor

import (
	"github.com/thoas/go-funk"

	"github.com/pg-auto-ha/pgautoctl/internal/model"
	"github.com/pg-auto-ha/pgautoctl/internal/pg"
)

// Election is the outcome of running candidate election over a group's
// reported LSNs (spec §4.1 "Candidate election").
type Election struct {
	// Winner is the node elected to become the new primary.
	Winner model.Node
	// MostAdvanced is the node with the globally maximum reported LSN
	// across all standbys, which may differ from Winner when priority
	// breaks the tie in favor of a less-advanced candidate.
	MostAdvanced model.Node
	// NeedsFastForward is true when Winner must first catch up to
	// MostAdvanced via the fast-forward transition before being promoted.
	NeedsFastForward bool
}

// Elect runs the spec §4.1 candidate-election algorithm over standbys that
// have reported their LSN (i.e. have been assigned report-lsn and reported
// back). ok is false when no quorum candidate exists, in which case the
// monitor must refuse to fail over rather than promote a
// candidatePriority=0 or non-quorum node (spec §8, boundary property).
func Elect(standbys []model.Node) (Election, bool) {
	candidates := funk.Filter(standbys, func(n model.Node) bool {
		return n.IsQuorumCandidate()
	}).([]model.Node)
	if len(candidates) == 0 {
		return Election{}, false
	}

	var mostAdvanced model.Node
	for _, n := range standbys {
		if mostAdvanced.ReportedLSN == "" || mostAdvanced.ReportedLSN.Less(n.ReportedLSN) {
			mostAdvanced = n
		}
	}

	maxLSN := pg.LSN("")
	for _, n := range candidates {
		maxLSN = pg.Max(maxLSN, n.ReportedLSN)
	}

	atMax := funk.Filter(candidates, func(n model.Node) bool {
		return n.ReportedLSN == maxLSN
	}).([]model.Node)

	winner := atMax[0]
	for _, n := range atMax[1:] {
		switch {
		case n.CandidatePriority > winner.CandidatePriority:
			winner = n
		case n.CandidatePriority == winner.CandidatePriority && n.NodeID < winner.NodeID:
			winner = n
		}
	}

	return Election{
		Winner:           winner,
		MostAdvanced:     mostAdvanced,
		NeedsFastForward: winner.NodeID != mostAdvanced.NodeID && mostAdvanced.ReportedLSN != "",
	}, true
}
