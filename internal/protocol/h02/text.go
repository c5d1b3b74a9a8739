package h02

import (
	"fmt"
	"strings"

	"github.com/taoyao-code/h02-server/internal/coremodel"
)

// decodeRegular 常规位置报文，从第 3 个字段开始按顺序消费可选字段
func decodeRegular(s *sentence, pos *coremodel.Position) error {
	db := newDateBuilder(s.now)
	idx := 3

	if db.setTimeField(s.field(idx)) {
		idx++
	}

	if s.has(idx) {
		switch v := s.field(idx); {
		case v == "A" || v == "V":
			pos.Valid = v == "A"
			idx++
		case isDigits(v):
			pos.Valid = true
			idx++
		}
	}

	idx = parseCoordinates(s, idx, &pos.Latitude, &pos.Longitude)

	if s.has(idx) {
		if v, ok := parseFloat(s.field(idx)); ok {
			pos.Speed = v * knotsToKmh
		}
		idx++
	}
	if s.has(idx) {
		if v, ok := parseFloat(s.field(idx)); ok {
			pos.Course = v
		}
		idx++
	}

	if db.setDateReverse(s.field(idx)) {
		idx++
	}
	pos.Time = db.time()

	if s.has(idx) {
		parseStatusField(pos, s.field(idx))
		idx++
	}

	decodeTrailing(s, pos, idx)
	return nil
}

// decodeTrailing 状态字之后的附加字段：扩展遥测或 io1..ioN
func decodeTrailing(s *sentence, pos *coremodel.Position, idx int) {
	if !s.has(idx) {
		return
	}
	if len(s.fields) > idx+5 && strings.Contains(s.field(idx+1), ".") && len(s.field(idx+3)) == 4 {
		if v, ok := parseInt(s.field(idx)); ok {
			pos.Set(coremodel.KeyOdometer, coremodel.IntValue(int64(v)))
		}
		if v, ok := parseFloat(s.field(idx + 1)); ok {
			pos.Set(coremodel.TempKey(1), coremodel.FloatValue(v))
		}
		if v, ok := parseFloat(s.field(idx + 2)); ok {
			pos.Set(coremodel.KeyFuelLevel, coremodel.FloatValue(v))
		}
		if v, ok := parseInt(s.field(idx + 3)); ok {
			pos.Altitude = v
		}
		lac, ok1 := parseHex(s.field(idx + 4))
		cid, ok2 := parseHex(s.field(idx + 5))
		if ok1 && ok2 {
			pos.Network = &coremodel.Network{}
			pos.Network.AddCellTower(coremodel.CellTowerFromLacCid(int(lac), int(cid)))
		}
		return
	}
	for i, n := idx, 1; i < len(s.fields); i, n = i+1, n+1 {
		pos.Set(coremodel.IOKey(n), coremodel.StringValue(s.field(i)))
	}
}

// decodeV1 命令应答，带附加字段时按常规报文解析
func decodeV1(s *sentence, pos *coremodel.Position) error {
	pos.Valid = true
	pos.Time = s.now
	if len(s.fields) > 3 {
		return decodeRegular(s, pos)
	}
	return nil
}

func decodeV4(s *sentence, pos *coremodel.Position) error {
	if s.has(3) {
		pos.Set(coremodel.KeyResult, coremodel.StringValue(s.field(3)))
	}
	pos.Time = s.now
	return nil
}

// decodeNBR 基站报文：
// 时间,MCC,MNC,TA,数量,lac,cid,rssi[Y lac,cid,rssi...],DDMMYY[,状态]
func decodeNBR(s *sentence, pos *coremodel.Position) error {
	if err := s.require(10); err != nil {
		return err
	}
	db := newDateBuilder(s.now)
	db.setTimeField(s.field(3))

	mcc, _ := parseInt(s.field(4))
	mnc, _ := parseInt(s.field(5))

	last := len(s.fields) - 1
	dateIdx := last
	status := ""
	if v := s.field(last); len(v) == 8 && isHex(v) {
		status = v
		dateIdx = last - 1
	}
	if dateIdx < 8 || !db.setDateReverse(s.field(dateIdx)) {
		return fmt.Errorf("%w: NBR date", ErrMalformed)
	}

	pos.Network = cellNetwork(mcc, mnc, s.fields[8:dateIdx])
	pos.Time = db.time()
	if status != "" {
		parseStatusField(pos, status)
	}
	return nil
}

// decodeLink 设备健康快照
func decodeLink(s *sentence, pos *coremodel.Position) error {
	if err := s.require(10); err != nil {
		return err
	}
	db := newDateBuilder(s.now)
	db.setTimeField(s.field(3))

	setIntAttr(pos, coremodel.KeyRSSI, s.field(4))
	setIntAttr(pos, coremodel.KeySatellites, s.field(5))
	setIntAttr(pos, coremodel.KeyBatteryLevel, s.field(6))
	setIntAttr(pos, coremodel.KeySteps, s.field(7))
	setIntAttr(pos, coremodel.KeyTurnovers, s.field(8))

	db.setDateReverse(s.field(9))
	pos.Time = db.time()

	if s.has(10) {
		parseStatusField(pos, s.field(10))
	}
	return nil
}

// decodeV3 基站报文：时间,MCC,MNC,数量,(lac,cid,x,x)*数量,电量(hex),x,DDMMYY[,状态]
func decodeV3(s *sentence, pos *coremodel.Position) error {
	if err := s.require(11); err != nil {
		return err
	}
	db := newDateBuilder(s.now)
	db.setTimeField(s.field(3))

	mcc, _ := parseInt(s.field(4))
	mnc, _ := parseInt(s.field(5))
	count, ok := parseInt(s.field(6))
	// 每个基站占 4 个字段，其后还有电量、保留、日期共 3 个
	if !ok || count < 0 || count > (len(s.fields)-10)/4 {
		return fmt.Errorf("%w: V3 cell count %q", ErrMalformed, s.field(6))
	}

	idx := 7 + 4*count
	if !s.has(idx + 2) {
		return fmt.Errorf("%w: V3 declares %d cells, got %d fields", ErrMalformed, count, len(s.fields))
	}

	network := &coremodel.Network{}
	for i := 0; i < count; i++ {
		lac, ok1 := parseInt(s.field(7 + 4*i))
		cid, ok2 := parseInt(s.field(8 + 4*i))
		if ok1 && ok2 {
			network.AddCellTower(coremodel.CellTower{MCC: mcc, MNC: mnc, LAC: lac, CID: cid})
		}
	}
	pos.Network = network

	if v, ok := parseHex(s.field(idx)); ok {
		pos.Set(coremodel.KeyBattery, coremodel.IntValue(v))
	}
	db.setDateReverse(s.field(idx + 2))
	pos.Time = db.time()

	if s.has(idx + 3) {
		parseStatusField(pos, s.field(idx+3))
	}
	return nil
}

// decodeVP1 V 为基站报文，A/B 为 GPS 报文
func decodeVP1(s *sentence, pos *coremodel.Position) error {
	if err := s.require(6); err != nil {
		return err
	}
	pos.Time = s.now

	switch s.field(3) {
	case "V":
		mcc, _ := parseInt(s.field(4))
		mnc, _ := parseInt(s.field(5))
		pos.Network = cellNetwork(mcc, mnc, s.fields[6:])
	case "A", "B":
		pos.Valid = s.field(3) == "A"
		if lat, ok := degreesMinutes(s.field(4), 2); ok {
			if s.field(5) != "N" {
				lat = -lat
			}
			pos.Latitude = lat
		}
		if s.has(7) {
			if lon, ok := degreesMinutes(s.field(6), 3); ok {
				if s.field(7) != "E" {
					lon = -lon
				}
				pos.Longitude = lon
			}
		}
		if s.has(9) {
			if v, ok := parseFloat(s.field(8)); ok {
				pos.Speed = v
			}
			if v, ok := parseFloat(s.field(9)); ok {
				pos.Course = v
			}
		}
		db := newDateBuilder(s.now)
		if db.setDateReverse(s.field(10)) {
			pos.Time = db.time()
		}
	}
	return nil
}

// 心跳中的握手标记，ACK 必须先于请求判断
const (
	handshakeMarker    = "BP00"
	handshakeAckMarker = "BP00HSOACK"
	handshakeReqMarker = "BP00HSO"
)

// 心跳类型
const (
	HeartbeatHandshakeReq = "handshakeReq"
	HeartbeatHandshakeAck = "handshakeAck"
	HeartbeatPlain        = "heartbeat"
)

func decodeHeartbeat(s *sentence, pos *coremodel.Position) error {
	if err := s.require(4); err != nil {
		return err
	}
	pos.Time = s.now

	v := s.field(3)
	setIntAttr(pos, coremodel.KeyBatteryLevel, v)

	if strings.Contains(v, handshakeMarker) {
		pos.Set(coremodel.KeyType, coremodel.StringValue(heartbeatType(v)))
		pos.Valid = false
	}
	return nil
}

func heartbeatType(v string) string {
	switch {
	case strings.Contains(v, handshakeAckMarker):
		return HeartbeatHandshakeAck
	case strings.Contains(v, handshakeReqMarker):
		return HeartbeatHandshakeReq
	default:
		return HeartbeatPlain
	}
}

func setIntAttr(pos *coremodel.Position, key, v string) {
	if n, ok := parseInt(v); ok {
		pos.Set(key, coremodel.IntValue(int64(n)))
	}
}

// cellNetwork 解析 lac,cid,signal 三元组列表，元组之间以 'Y' 或 ',' 分隔
func cellNetwork(mcc, mnc int, fields []string) *coremodel.Network {
	joined := strings.ReplaceAll(strings.Join(fields, ","), "Y", ",")
	var values []string
	for _, v := range strings.Split(joined, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}

	network := &coremodel.Network{}
	for i := 0; i+2 < len(values); i += 3 {
		lac, ok1 := parseInt(values[i])
		cid, ok2 := parseInt(values[i+1])
		signal, ok3 := parseInt(values[i+2])
		if !ok1 || !ok2 {
			continue
		}
		if !ok3 {
			network.AddCellTower(coremodel.CellTower{MCC: mcc, MNC: mnc, LAC: lac, CID: cid})
			continue
		}
		network.AddCellTower(coremodel.NewCellTower(mcc, mnc, lac, cid, signal))
	}
	return network
}
