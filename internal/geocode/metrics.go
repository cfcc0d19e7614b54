package geocode

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolutionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "partner_geocode_resolutions_total",
		Help: "Postal code resolutions by the source that produced the coordinate",
	},
	[]string{"source"},
)
