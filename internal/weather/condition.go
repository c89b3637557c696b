package weather

// ConditionFromCode maps a WMO weather interpretation code to a display label.
// Bands are inclusive upper bounds; anything outside the documented range is unknown.
func ConditionFromCode(code int) Condition {
	switch {
	case code < 0:
		return ConditionUnknown
	case code == 0:
		return ConditionClear
	case code <= 3:
		return ConditionPartlyCloudy
	case code <= 48:
		return ConditionFog
	case code <= 55:
		return ConditionDrizzle
	case code <= 65:
		return ConditionRain
	case code <= 75:
		return ConditionSnow
	case code <= 82:
		return ConditionHeavyRain
	case code <= 99:
		return ConditionThunderstorm
	default:
		return ConditionUnknown
	}
}

// StatusFromKp classifies a planetary K-index value.
func StatusFromKp(kp float64) KpStatus {
	switch {
	case kp < 4:
		return KpQuiet
	case kp < 5:
		return KpUnsettled
	default:
		return KpStorm
	}
}
