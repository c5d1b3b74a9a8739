package h02

import (
	"strconv"
	"time"
)

// knotsToKmh 节 -> km/h
const knotsToKmh = 1.852

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func parseInt(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	return v, err == nil
}

func parseHex(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 16, 64)
	return v, err == nil
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// dateBuilder 以某个时间为底，逐项覆盖日期/时间字段（UTC）
type dateBuilder struct {
	year, month, day     int
	hour, minute, second int
}

func newDateBuilder(base time.Time) *dateBuilder {
	base = base.UTC()
	return &dateBuilder{
		year: base.Year(), month: int(base.Month()), day: base.Day(),
		hour: base.Hour(), minute: base.Minute(), second: base.Second(),
	}
}

// setTimeField 解析 HHMMSS
func (b *dateBuilder) setTimeField(s string) bool {
	if len(s) != 6 || !isDigits(s) {
		return false
	}
	b.hour, _ = strconv.Atoi(s[0:2])
	b.minute, _ = strconv.Atoi(s[2:4])
	b.second, _ = strconv.Atoi(s[4:6])
	return true
}

// setDateReverse 解析 DDMMYY，两位年份 <70 为 20YY，否则 19YY
func (b *dateBuilder) setDateReverse(s string) bool {
	if len(s) != 6 || !isDigits(s) {
		return false
	}
	b.day, _ = strconv.Atoi(s[0:2])
	b.month, _ = strconv.Atoi(s[2:4])
	yy, _ := strconv.Atoi(s[4:6])
	b.year = expandYear(yy)
	return true
}

func expandYear(yy int) int {
	if yy >= 70 {
		return 1900 + yy
	}
	return 2000 + yy
}

func (b *dateBuilder) time() time.Time {
	return time.Date(b.year, time.Month(b.month), b.day, b.hour, b.minute, b.second, 0, time.UTC)
}
