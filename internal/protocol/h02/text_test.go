package h02

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/h02-server/internal/coremodel"
)

func TestDecodeRegular(t *testing.T) {
	d := newTestDecoder(nil)

	t.Run("速度节转公里", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,V2,050316,V,2234.0297,N,11405.9101,E,10.0,123,120316,FFFFFFFF#")
		require.NoError(t, err)
		assert.Equal(t, SubtypeRegular, msg.Subtype)
		assert.False(t, msg.Position.Valid)
		assert.InDelta(t, 18.52, msg.Position.Speed, 1e-9)
		assert.Equal(t, 123.0, msg.Position.Course)
	})

	t.Run("数字有效位", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,V2,050316,6,2234.0297,N,11405.9101,E,0,0,120316,FFFFFFFF#")
		require.NoError(t, err)
		assert.True(t, msg.Position.Valid)
		assert.InDelta(t, 22.567162, msg.Position.Latitude, 1e-5)
	})

	t.Run("南纬西经", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,V1,050316,A,2234.0297,S,11405.9101,W,0,0,120316,FFFFFFFF#")
		require.NoError(t, err)
		assert.InDelta(t, -22.567162, msg.Position.Latitude, 1e-5)
		assert.InDelta(t, -114.098502, msg.Position.Longitude, 1e-5)
	})

	t.Run("横线坐标", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,V1,050316,A,-22-34.0297,N,-114-05.9101,W,0,0,120316,FFFFFFFF#")
		require.NoError(t, err)
		assert.InDelta(t, 22.567162, msg.Position.Latitude, 1e-5)
		assert.InDelta(t, -114.098502, msg.Position.Longitude, 1e-5)
	})

	t.Run("度分秒坐标", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,V1,050316,A,2234012345,N,11405123456,E,0,0,120316,FFFFFFFF#")
		require.NoError(t, err)
		assert.InDelta(t, 22.567009583, msg.Position.Latitude, 1e-6)
		assert.InDelta(t, 114.086762667, msg.Position.Longitude, 1e-6)
	})

	t.Run("IO附加字段", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,V1,050316,A,2234.0297,N,11405.9101,E,0,0,120316,FFFFFFFF, abc ,def#")
		require.NoError(t, err)
		v1, _ := msg.Position.Attributes.String(coremodel.IOKey(1))
		v2, _ := msg.Position.Attributes.String(coremodel.IOKey(2))
		assert.Equal(t, "abc", v1)
		assert.Equal(t, "def", v2)
		assert.Nil(t, msg.Position.Network)
	})

	t.Run("扩展遥测", func(t *testing.T) {
		msg, err := decodeString(t, d,
			"*HQ,1,V1,050316,A,2234.0297,N,11405.9101,E,0,0,120316,FFFFFFFF,1234,25.5,60.2,0120,2A3F,1B2C#")
		require.NoError(t, err)
		pos := msg.Position
		odometer, _ := pos.Attributes.Int(coremodel.KeyOdometer)
		temp, _ := pos.Attributes.Float(coremodel.TempKey(1))
		fuel, _ := pos.Attributes.Float(coremodel.KeyFuelLevel)
		assert.Equal(t, int64(1234), odometer)
		assert.Equal(t, 25.5, temp)
		assert.Equal(t, 60.2, fuel)
		assert.Equal(t, 120, pos.Altitude)
		require.NotNil(t, pos.Network)
		require.Len(t, pos.Network.CellTowers, 1)
		assert.Equal(t, 0x2A3F, pos.Network.CellTowers[0].LAC)
		assert.Equal(t, 0x1B2C, pos.Network.CellTowers[0].CID)
	})

	t.Run("仅V1应答", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,V1#")
		require.NoError(t, err)
		assert.True(t, msg.Position.Valid)
		assert.Equal(t, testNow, msg.Position.Time)
	})
}

func TestDecodeV4(t *testing.T) {
	d := newTestDecoder(nil)
	msg, err := decodeString(t, d, "*HQ,1,V4,S20,OK#")
	require.NoError(t, err)
	result, ok := msg.Position.Attributes.String(coremodel.KeyResult)
	require.True(t, ok)
	assert.Equal(t, "S20", result)
	assert.Equal(t, testNow, msg.Position.Time)
}

func TestDecodeNBR(t *testing.T) {
	d := newTestDecoder(nil)

	t.Run("逗号分隔的三元组带状态", func(t *testing.T) {
		msg, err := decodeString(t, d,
			"*HQ,1,NBR,081035,460,0,1,3,9346,5223,36,9346,5176,28,9346,5179,27,010716,FFFFFFFE#")
		require.NoError(t, err)
		pos := msg.Position
		assert.Equal(t, time.Date(2016, 7, 1, 8, 10, 35, 0, time.UTC), pos.Time)
		require.NotNil(t, pos.Network)
		require.Len(t, pos.Network.CellTowers, 3)
		first := pos.Network.CellTowers[0]
		assert.Equal(t, 460, first.MCC)
		assert.Equal(t, 9346, first.LAC)
		assert.Equal(t, 5223, first.CID)
		require.NotNil(t, first.Signal)
		assert.Equal(t, 36, *first.Signal)
		assert.Equal(t, 5179, pos.Network.CellTowers[2].CID)
		assert.True(t, pos.HasAlarm(coremodel.AlarmVibration))
	})

	t.Run("Y分隔的三元组无状态", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,NBR,081035,460,0,1,2,9346,5223,36Y9346,5176,28,010716#")
		require.NoError(t, err)
		require.Len(t, msg.Position.Network.CellTowers, 2)
		assert.Equal(t, 5176, msg.Position.Network.CellTowers[1].CID)
		assert.False(t, msg.Position.Attributes.Has(coremodel.KeyStatus))
	})

	t.Run("日期非法", func(t *testing.T) {
		_, err := decodeString(t, d, "*HQ,1,NBR,081035,460,0,1,2,9346,5223,36,XX#")
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestDecodeLink(t *testing.T) {
	d := newTestDecoder(nil)
	msg, err := decodeString(t, d, "*HQ,1,LINK,112757,100,7,88,512,30,010716,FFFFFFFF#")
	require.NoError(t, err)

	pos := msg.Position
	expect := map[string]int64{
		coremodel.KeyRSSI:         100,
		coremodel.KeySatellites:   7,
		coremodel.KeyBatteryLevel: 88,
		coremodel.KeySteps:        512,
		coremodel.KeyTurnovers:    30,
	}
	for key, want := range expect {
		got, ok := pos.Attributes.Int(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	assert.Equal(t, time.Date(2016, 7, 1, 11, 27, 57, 0, time.UTC), pos.Time)
	assert.True(t, pos.Attributes.Has(coremodel.KeyStatus))
}

func TestDecodeV3(t *testing.T) {
	d := newTestDecoder(nil)

	t.Run("两个基站", func(t *testing.T) {
		msg, err := decodeString(t, d,
			"*HQ,1,V3,062145,460,0,2,9346,5223,0,36,9346,5176,0,28,0064,0,050716,FFFFFFFF#")
		require.NoError(t, err)
		pos := msg.Position
		require.Len(t, pos.Network.CellTowers, 2)
		assert.Equal(t, 5223, pos.Network.CellTowers[0].CID)
		assert.Equal(t, 5176, pos.Network.CellTowers[1].CID)
		assert.Nil(t, pos.Network.CellTowers[0].Signal)
		battery, _ := pos.Attributes.Int(coremodel.KeyBattery)
		assert.Equal(t, int64(100), battery)
		assert.Equal(t, time.Date(2016, 7, 5, 6, 21, 45, 0, time.UTC), pos.Time)
		assert.True(t, pos.Attributes.Has(coremodel.KeyStatus))
	})

	t.Run("声明数量超过实际字段", func(t *testing.T) {
		_, err := decodeString(t, d, "*HQ,1,V3,062145,460,0,5,1,2,3,4#")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("数量非数字", func(t *testing.T) {
		_, err := decodeString(t, d, "*HQ,1,V3,062145,460,0,x,1,2,3,4#")
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestDecodeVP1(t *testing.T) {
	d := newTestDecoder(nil)

	t.Run("GPS有日期", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,VP1,A,2234.0297,N,11405.9101,E,10.0,90,120316#")
		require.NoError(t, err)
		pos := msg.Position
		assert.True(t, pos.Valid)
		assert.InDelta(t, 22.567162, pos.Latitude, 1e-5)
		assert.InDelta(t, 114.098502, pos.Longitude, 1e-5)
		assert.Equal(t, 10.0, pos.Speed, "VP1 速度原样保留")
		assert.Equal(t, 90.0, pos.Course)
		assert.Equal(t, time.Date(2016, 3, 12, 3, 4, 5, 0, time.UTC), pos.Time)
	})

	t.Run("GPS无日期南纬西经", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,VP1,B,2234.0297,S,11405.9101,W#")
		require.NoError(t, err)
		pos := msg.Position
		assert.False(t, pos.Valid)
		assert.Less(t, pos.Latitude, 0.0)
		assert.Less(t, pos.Longitude, 0.0)
		assert.Equal(t, testNow, pos.Time)
	})

	t.Run("基站", func(t *testing.T) {
		msg, err := decodeString(t, d, "*HQ,1,VP1,V,460,0,9346,5223,36Y9346,5176,28#")
		require.NoError(t, err)
		pos := msg.Position
		require.Len(t, pos.Network.CellTowers, 2)
		assert.Equal(t, 460, pos.Network.CellTowers[1].MCC)
		assert.Equal(t, 28, *pos.Network.CellTowers[1].Signal)
		assert.Equal(t, testNow, pos.Time)
	})
}

func TestDecodeHeartbeat(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		kind    string
		battery int64
		valid   bool
	}{
		{name: "电量", field: "85", battery: 85, valid: true},
		{name: "握手请求", field: "BP00HSO", kind: HeartbeatHandshakeReq},
		{name: "握手应答", field: "BP00HSOACK", kind: HeartbeatHandshakeAck},
		{name: "普通心跳", field: "BP00", kind: HeartbeatPlain},
	}

	d := newTestDecoder(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeString(t, d, "*HQ,1,HTBT,"+tt.field+"#")
			require.NoError(t, err)
			pos := msg.Position
			assert.Equal(t, tt.valid, pos.Valid)

			battery, ok := pos.BatteryLevel()
			assert.Equal(t, tt.battery != 0, ok)
			assert.Equal(t, tt.battery, battery)

			kind, _ := pos.Attributes.String(coremodel.KeyType)
			assert.Equal(t, tt.kind, kind)
		})
	}
}
