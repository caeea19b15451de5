package strava

import (
	"strings"
	"time"
)

// Activity types as reported in the "type" field.
const (
	TypeRun       = "Run"
	TypeRide      = "Ride"
	TypeSwim      = "Swim"
	TypeHike      = "Hike"
	TypeWalk      = "Walk"
	TypeAlpineSki = "AlpineSki"
	TypeNordicSki = "NordicSki"
	TypeSnowboard = "Snowboard"
	TypeWorkout   = "Workout"
	TypeYoga      = "Yoga"
)

// Activity is a summary activity from /athlete/activities.
//
// StartDateLocal carries the athlete's wall clock at the activity location.
// Strava encodes it with a trailing Z, so after decoding its fields read as
// UTC even though they are local values.
type Activity struct {
	ID                 int64       `json:"id"`
	Name               string      `json:"name"`
	Distance           float64     `json:"distance"`
	MovingTime         int         `json:"moving_time"`
	ElapsedTime        int         `json:"elapsed_time"`
	TotalElevationGain float64     `json:"total_elevation_gain"`
	ElevHigh           float64     `json:"elev_high,omitempty"`
	ElevLow            float64     `json:"elev_low,omitempty"`
	Type               string      `json:"type"`
	SportType          string      `json:"sport_type"`
	StartDate          time.Time   `json:"start_date"`
	StartDateLocal     time.Time   `json:"start_date_local"`
	Timezone           string      `json:"timezone"`
	AverageSpeed       float64     `json:"average_speed"`
	MaxSpeed           float64     `json:"max_speed"`
	HasHeartrate       bool        `json:"has_heartrate"`
	AverageHeartrate   float64     `json:"average_heartrate,omitempty"`
	MaxHeartrate       float64     `json:"max_heartrate,omitempty"`
	Map                ActivityMap `json:"map"`
}

// ActivityMap holds the encoded route of an activity.
type ActivityMap struct {
	ID              string `json:"id"`
	SummaryPolyline string `json:"summary_polyline"`
}

// IsType reports whether the activity's type matches t, ignoring case.
func (a Activity) IsType(t string) bool {
	return strings.EqualFold(a.Type, t)
}

// HasRoute reports whether Strava returned a summary polyline.
func (a Activity) HasRoute() bool {
	return a.Map.SummaryPolyline != ""
}

// Athlete is the authenticated athlete's profile.
type Athlete struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	Profile       string `json:"profile"`
	ProfileMedium string `json:"profile_medium"`
}

// DisplayName is "First Last", falling back to the username.
func (a Athlete) DisplayName() string {
	name := strings.TrimSpace(a.Firstname + " " + a.Lastname)
	if name == "" {
		return a.Username
	}
	return name
}
