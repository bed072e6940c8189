package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modbusVar(name string, register int) OcppVariable {
	return OcppVariable{
		OCPPName: name,
		Protocol: VariableProtocolModbus,
		Modbus:   &ModbusVariableMapping{RegisterAddress: register, DataType: DataTypeUint16, Scale: 1},
	}
}

func TestFlattenSimpleInheritance(t *testing.T) {
	raw := map[string]MappingTemplate{
		"parent": {
			ID: "parent",
			Variables: []OcppVariable{
				modbusVar("A", 40001),
				{OCPPName: "B", Protocol: VariableProtocolModbus, Modbus: &ModbusVariableMapping{RegisterAddress: 40010, DataType: DataTypeFloat32, Scale: 0.1}},
			},
		},
		"child": {
			ID:     "child",
			Parent: "parent",
			Variables: []OcppVariable{
				modbusVar("A", 40002),
				modbusVar("C", 40003),
			},
		},
	}

	flat, err := flatten(raw)
	require.NoError(t, err)

	child := flat["child"]
	byName := map[string]OcppVariable{}
	for _, v := range child.Variables {
		byName[v.OCPPName] = v
	}
	require.Len(t, byName, 3)
	assert.Equal(t, 40002, byName["A"].Modbus.RegisterAddress)
	assert.Equal(t, 40010, byName["B"].Modbus.RegisterAddress)
	assert.Equal(t, 40003, byName["C"].Modbus.RegisterAddress)
	assert.Empty(t, child.Parent)
}

func TestFlattenRejectsCycle(t *testing.T) {
	raw := map[string]MappingTemplate{
		"t1": {ID: "t1", Parent: "t2"},
		"t2": {ID: "t2", Parent: "t1"},
	}
	_, err := flatten(raw)
	require.Error(t, err)
}

func TestFlattenRejectsMissingParent(t *testing.T) {
	raw := map[string]MappingTemplate{
		"child": {ID: "child", Parent: "ghost"},
	}
	_, err := flatten(raw)
	require.Error(t, err)
}

func TestFlattenMultiLevelInheritance(t *testing.T) {
	raw := map[string]MappingTemplate{
		"base":  {ID: "base", Variables: []OcppVariable{modbusVar("A", 1)}},
		"mid1":  {ID: "mid1", Parent: "base", Variables: []OcppVariable{modbusVar("B", 2)}},
		"leaf":  {ID: "leaf", Parent: "mid1", Variables: []OcppVariable{modbusVar("C", 3)}},
	}
	flat, err := flatten(raw)
	require.NoError(t, err)
	assert.Len(t, flat["leaf"].Variables, 3)
}
