package h02

import (
	"github.com/taoyao-code/h02-server/internal/codec"
	"github.com/taoyao-code/h02-server/internal/coremodel"
)

// 状态字位定义（位为 0 表示告警触发）
const (
	statusBitVibration = 0
	statusBitSOS       = 1
	statusBitOverspeed = 2
	statusBitIgnition  = 10
	statusBitSOSAlt    = 18
	statusBitPowerCut  = 19
)

// processStatus 解析 32 位状态字：告警可叠加，点火取第 10 位，原值保留
func processStatus(pos *coremodel.Position, status uint32) {
	pos.Set(coremodel.KeyStatus, coremodel.IntValue(int64(status)))

	if !codec.BitSet(status, statusBitVibration) {
		pos.AddAlarm(coremodel.AlarmVibration)
	}
	if !codec.BitSet(status, statusBitSOS) || !codec.BitSet(status, statusBitSOSAlt) {
		pos.AddAlarm(coremodel.AlarmSOS)
	}
	if !codec.BitSet(status, statusBitOverspeed) {
		pos.AddAlarm(coremodel.AlarmOverspeed)
	}
	if !codec.BitSet(status, statusBitPowerCut) {
		pos.AddAlarm(coremodel.AlarmPowerCut)
	}
	pos.Set(coremodel.KeyIgnition, coremodel.BoolValue(codec.BitSet(status, statusBitIgnition)))
}

// parseStatusField 解析 8 位十六进制状态字段
func parseStatusField(pos *coremodel.Position, s string) bool {
	if len(s) != 8 || !isHex(s) {
		return false
	}
	v, ok := parseHex(s)
	if !ok {
		return false
	}
	processStatus(pos, uint32(v))
	return true
}

// decodeBattery 二进制帧电量字节查表，ok=false 表示未知
func decodeBattery(v byte) (int, bool) {
	switch {
	case v == 0:
		return 0, false
	case v <= 3:
		return (int(v) - 1) * 10, true
	case v <= 6:
		return (int(v) - 1) * 20, true
	case v <= 100:
		return int(v), true
	case v >= 0xF1 && v <= 0xF6:
		return int(v) - 0xF0, true
	default:
		return 0, false
	}
}
