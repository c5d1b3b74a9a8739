package h02

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/taoyao-code/h02-server/internal/codec"
	"github.com/taoyao-code/h02-server/internal/coremodel"
)

// 二进制帧布局（标记字节之后）
const (
	binaryLongIDLen  = 8
	binaryShortIDLen = 5
	binaryLongIDHex  = 15

	binaryTimeLen   = 6
	binaryCoordLen  = 5
	binarySpeedLen  = 5
	binaryStatusLen = 4
	binaryBodyLen   = binaryTimeLen + 2*binaryCoordLen + binarySpeedLen + binaryStatusLen
)

// 经度块末字节低 4 位标志
const (
	flagValid = 0x02
	flagNorth = 0x04
	flagEast  = 0x08
)

func (d *Decoder) decodeBinary(ctx context.Context, frame []byte, remote net.Addr) (*Message, error) {
	buf := frame[1:]

	var rawID string
	if len(frame) >= MessageLong {
		rawID = hex.EncodeToString(buf[:binaryLongIDLen])[:binaryLongIDHex]
		buf = buf[binaryLongIDLen:]
	} else {
		if len(buf) < binaryShortIDLen {
			return nil, fmt.Errorf("%w: binary frame of %d bytes", ErrMalformed, len(frame))
		}
		rawID = hex.EncodeToString(buf[:binaryShortIDLen])
		buf = buf[binaryShortIDLen:]
	}
	if len(buf) < binaryBodyLen {
		return nil, fmt.Errorf("%w: binary body of %d bytes", ErrMalformed, len(buf))
	}

	deviceID, err := d.resolve(ctx, rawID, remote)
	if err != nil {
		return nil, err
	}

	pos := coremodel.NewPosition(ProtocolName)
	pos.DeviceID = deviceID

	// 时 分 秒 日 月 年，两位年份一律按 20YY
	pos.Time = time.Date(
		2000+codec.BcdToInt(buf[5]), time.Month(codec.BcdToInt(buf[4])), codec.BcdToInt(buf[3]),
		codec.BcdToInt(buf[0]), codec.BcdToInt(buf[1]), codec.BcdToInt(buf[2]), 0, time.UTC)
	buf = buf[binaryTimeLen:]

	lat := binaryCoordinate(buf, 2)
	if level, ok := decodeBattery(buf[4]); ok {
		pos.Set(coremodel.KeyBatteryLevel, coremodel.IntValue(int64(level)))
	}
	buf = buf[binaryCoordLen:]

	lon := binaryCoordinate(buf, 3)
	flags := buf[4] & 0x0F
	pos.Valid = flags&flagValid != 0
	if flags&flagNorth == 0 {
		lat = -lat
	}
	if flags&flagEast == 0 {
		lon = -lon
	}
	pos.Latitude, pos.Longitude = lat, lon
	buf = buf[binaryCoordLen:]

	pos.Speed = float64(codec.ReadBcdDigits(buf, 0, 3))
	pos.Course = float64(int(buf[3]&0x0F)*100 + codec.BcdToInt(buf[4]))
	buf = buf[binarySpeedLen:]

	processStatus(pos, binary.BigEndian.Uint32(buf[:binaryStatusLen]))

	return &Message{Position: pos, Subtype: SubtypeBinary, Binary: true, RawID: rawID}, nil
}

// binaryCoordinate 度占 degDigits 位，其后 6 位为万分之一分
func binaryCoordinate(b []byte, degDigits int) float64 {
	deg := codec.ReadBcdDigits(b, 0, degDigits)
	minutes := float64(codec.ReadBcdDigits(b, degDigits, 6)) * 0.0001
	return float64(deg) + minutes/60
}
