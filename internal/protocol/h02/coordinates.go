package h02

import "strings"

// coordinateFormat 一种文本坐标编码：match 只看结构，parse 负责数值换算
type coordinateFormat struct {
	name  string
	match func(lat, latHemi, lon, lonHemi string) bool
	parse func(lat, lon string) (float64, float64, bool)
}

// coordinateFormats 按优先级排列，取第一个结构匹配的格式
var coordinateFormats = []coordinateFormat{
	{name: "hyphen", match: matchHyphen, parse: parseHyphen},
	{name: "ddmm", match: matchDegreesMinutes, parse: parseDegreesMinutes},
	{name: "dms", match: matchDegreesMinutesSeconds, parse: parseDegreesMinutesSeconds},
}

// parseCoordinates 从 idx 开始消费 纬度,N/S,经度,E/W 四个字段，返回新的下标
func parseCoordinates(s *sentence, idx int, lat, lon *float64) int {
	if !s.has(idx + 3) {
		return idx
	}
	la, laH, lo, loH := s.field(idx), s.field(idx+1), s.field(idx+2), s.field(idx+3)
	for _, f := range coordinateFormats {
		if !f.match(la, laH, lo, loH) {
			continue
		}
		vLat, vLon, ok := f.parse(la, lo)
		if !ok {
			return idx
		}
		*lat = applyHemisphere(vLat, laH, "S")
		*lon = applyHemisphere(vLon, loH, "W")
		return idx + 4
	}
	return idx
}

func applyHemisphere(v float64, hemi, negative string) float64 {
	if hemi == negative {
		return -v
	}
	return v
}

// -DD-MM.MMMM
func matchHyphen(lat, _, lon, _ string) bool {
	return strings.Contains(lat, "-") && strings.Contains(lon, "-")
}

func parseHyphen(lat, lon string) (float64, float64, bool) {
	la, ok1 := hyphenValue(lat)
	lo, ok2 := hyphenValue(lon)
	return la, lo, ok1 && ok2
}

func hyphenValue(s string) (float64, bool) {
	parts := strings.SplitN(strings.TrimPrefix(s, "-"), "-", 2)
	if len(parts) != 2 {
		return 0, false
	}
	deg, ok := parseInt(parts[0])
	if !ok {
		return 0, false
	}
	minutes, ok := parseFloat(parts[1])
	if !ok {
		return 0, false
	}
	return float64(deg) + minutes/60, true
}

// DDMM.MMMM / DDDMM.MMMM
func matchDegreesMinutes(lat, latHemi, _, _ string) bool {
	return lat != "" && lat[0] >= '0' && lat[0] <= '9' && len(latHemi) == 1 && strings.Contains(lat, ".")
}

func parseDegreesMinutes(lat, lon string) (float64, float64, bool) {
	la, ok1 := degreesMinutes(lat, 2)
	lo, ok2 := degreesMinutes(lon, 3)
	return la, lo, ok1 && ok2
}

func degreesMinutes(s string, degDigits int) (float64, bool) {
	if len(s) <= degDigits {
		return 0, false
	}
	deg, ok := parseInt(s[:degDigits])
	if !ok {
		return 0, false
	}
	minutes, ok := parseFloat(s[degDigits:])
	if !ok {
		return 0, false
	}
	return float64(deg) + minutes/60, true
}

// DDMMSSSSSS / DDDMMSSSSSS，秒以万分之一为单位
func matchDegreesMinutesSeconds(lat, _, lon, _ string) bool {
	return len(lat) == 10 && len(lon) == 11 && isDigits(lat) && isDigits(lon)
}

func parseDegreesMinutesSeconds(lat, lon string) (float64, float64, bool) {
	return dms(lat, 2), dms(lon, 3), true
}

func dms(s string, degDigits int) float64 {
	deg, _ := parseInt(s[:degDigits])
	minutes, _ := parseInt(s[degDigits : degDigits+2])
	sec, _ := parseInt(s[degDigits+2:])
	return float64(deg) + float64(minutes)/60 + float64(sec)/10000/3600
}
