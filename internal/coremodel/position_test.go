package coremodel

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionAlarms(t *testing.T) {
	p := NewPosition("h02")
	assert.Empty(t, p.Alarms())

	p.AddAlarm(AlarmSOS)
	p.AddAlarm(AlarmVibration)
	p.AddAlarm(AlarmSOS)

	assert.Equal(t, []string{AlarmSOS, AlarmVibration}, p.Alarms())
	assert.True(t, p.HasAlarm(AlarmVibration))
	assert.False(t, p.HasAlarm(AlarmPowerCut))
}

func TestPositionTypedAccessors(t *testing.T) {
	p := NewPosition("h02")
	p.Set(KeyStatus, IntValue(0xFFFFFBFF))
	p.Set(KeyIgnition, BoolValue(true))
	p.Set(KeyBatteryLevel, IntValue(80))

	st, ok := p.Status()
	require.True(t, ok)
	assert.Equal(t, uint32(0xFFFFFBFF), st)

	ign, ok := p.Ignition()
	require.True(t, ok)
	assert.True(t, ign)

	lvl, _ := p.BatteryLevel()
	assert.Equal(t, int64(80), lvl)

	assert.Equal(t, "io3", IOKey(3))
	assert.Equal(t, "temp1", TempKey(1))
}

func TestPositionJSON(t *testing.T) {
	p := NewPosition("h02")
	p.DeviceID = "123456789012345"
	p.Time = time.Date(2016, 3, 12, 5, 3, 16, 0, time.UTC)
	p.Network = &Network{}
	p.Network.AddCellTower(NewCellTower(460, 0, 9520, 3671, 20))

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "123456789012345", m["device_id"])
	assert.Equal(t, "2016-03-12T05:03:16Z", m["time"])
	towers := m["network"].(map[string]interface{})["cell_towers"].([]interface{})
	assert.Len(t, towers, 1)
}

func TestCommandParams(t *testing.T) {
	c := NewCommand(CommandPositionPeriodic, "dev").WithParam(KeyFrequency, StringValue("60"))
	v, ok := c.Param(KeyFrequency)
	require.True(t, ok)
	assert.Equal(t, "60", v.String())

	_, ok = (&Command{}).Param(KeyFrequency)
	assert.False(t, ok)
}
