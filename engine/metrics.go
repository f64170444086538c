// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package engine

import "github.com/gridrun/tracenet/metrics"

var (
	metricPositionOps = metrics.LazyLoadCounterVec("position_ops_total", []string{"op", "tier"})
	metricScans       = metrics.LazyLoadCounterVec("scans_total", []string{"tier", "status"})
	metricDeaths      = metrics.LazyLoadCounterVec("deaths_total", []string{"tier"})
	metricResets      = metrics.LazyLoadCounter("system_resets_total")
	metricTierStaked  = metrics.LazyLoadGaugeVec("tier_staked_gauge", []string{"tier"})
	metricTierAlive   = metrics.LazyLoadGaugeVec("tier_alive_gauge", []string{"tier"})
)
