package pkg

// enum of accessibility scoring method
type AccessMethod uint8

const (
	WEIGHTED_CATCHMENT AccessMethod = iota
	FCA_RATIO
	TWO_STAGE_FCA
	ENHANCED_TWO_STAGE_FCA
	THREE_STAGE_FCA
	RAAM
	UNKNOWN_METHOD
)

const (
	INF_COST     float64 = 1e15
	EPSILON              = 1e-9
	MIN_COST_EPS         = 1e-12

	DEFAULT_MAX_COST    = 60.0
	DEFAULT_RAAM_TAU    = 60.0
	SCORE_COLUMN_JOINER = "_"
)

const (
	DEBUG = false
)

func GetAccessMethod(method string) AccessMethod {
	switch method {
	case "weighted_catchment":
		return WEIGHTED_CATCHMENT
	case "fca_ratio":
		return FCA_RATIO
	case "two_stage":
		return TWO_STAGE_FCA
	case "enhanced_two_stage":
		return ENHANCED_TWO_STAGE_FCA
	case "three_stage":
		return THREE_STAGE_FCA
	case "raam":
		return RAAM
	default:
		return UNKNOWN_METHOD
	}
}

func (m AccessMethod) String() string {
	switch m {
	case WEIGHTED_CATCHMENT:
		return "weighted_catchment"
	case FCA_RATIO:
		return "fca_ratio"
	case TWO_STAGE_FCA:
		return "two_stage"
	case ENHANCED_TWO_STAGE_FCA:
		return "enhanced_two_stage"
	case THREE_STAGE_FCA:
		return "three_stage"
	case RAAM:
		return "raam"
	default:
		return "unknown"
	}
}
