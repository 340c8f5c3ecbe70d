package savm

import (
	"testing"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func push1(v byte) []byte { return []byte{byte(OpPush1), v} }

func TestExecute_AddAndHalt(t *testing.T) {
	code := append(push1(2), append(push1(3), byte(OpAdd), byte(OpHalt))...)
	result, err := Execute(code, ExecutionContext{}, NewStorage(), 1_000_000, Coprocessors{})
	require.NoError(t, err)
	assert.False(t, result.Reverted)
}

func TestExecute_ReturnsData(t *testing.T) {
	// MSTORE expects the stack as [..., offset, value] (value on top);
	// RETURN expects [..., offset, size] (size on top).
	code := []byte{}
	code = append(code, push1(0)...)    // offset
	code = append(code, push1(0xAA)...) // value
	code = append(code, byte(OpMStore))
	code = append(code, push1(0)...)  // offset
	code = append(code, push1(32)...) // size
	code = append(code, byte(OpReturn))

	result, err := Execute(code, ExecutionContext{}, NewStorage(), 1_000_000, Coprocessors{})
	require.NoError(t, err)
	require.Len(t, result.ReturnData, 32)
	assert.Equal(t, byte(0xAA), result.ReturnData[31])
}

func TestExecute_StorageRoundTrip(t *testing.T) {
	// SSTORE expects [..., key, value] (value on top).
	code := []byte{}
	code = append(code, push1(1)...)  // key
	code = append(code, push1(42)...) // value
	code = append(code, byte(OpSStore))
	code = append(code, push1(0)...) // mstore offset, pushed before the load
	code = append(code, push1(1)...) // key
	code = append(code, byte(OpSLoad))
	code = append(code, byte(OpMStore))
	code = append(code, push1(0)...)
	code = append(code, push1(32)...)
	code = append(code, byte(OpReturn))

	result, err := Execute(code, ExecutionContext{}, NewStorage(), 1_000_000, Coprocessors{})
	require.NoError(t, err)
	assert.Equal(t, byte(42), result.ReturnData[31])
}

func TestExecute_StackOverflow(t *testing.T) {
	code := make([]byte, 0, (MaxStackDepth+1)*2+1)
	for i := 0; i <= MaxStackDepth; i++ {
		code = append(code, push1(1)...)
	}
	code = append(code, byte(OpHalt))

	_, err := Execute(code, ExecutionContext{}, NewStorage(), 10_000_000, Coprocessors{})
	require.Error(t, err)
	assert.Equal(t, "MSEZ/SAVM/STACK_OVERFLOW", msezErrCode(t, err))
}

func TestExecute_OutOfGas(t *testing.T) {
	code := append(push1(1), append(push1(1), byte(OpAdd), byte(OpHalt))...)
	_, err := Execute(code, ExecutionContext{}, NewStorage(), 1, Coprocessors{})
	require.Error(t, err)
	assert.Equal(t, "MSEZ/SAVM/OUT_OF_GAS", msezErrCode(t, err))
}

func TestExecute_MemoryCapRejectsOversizedExpansion(t *testing.T) {
	// Push an offset well beyond MemoryMax and attempt MLOAD there.
	code := []byte{byte(OpPush32)}
	big := WordFromUint64(uint64(MemoryMax) * 2).Bytes32()
	code = append(code, big[:]...)
	code = append(code, byte(OpMLoad))

	_, err := Execute(code, ExecutionContext{}, NewStorage(), 10_000_000, Coprocessors{})
	require.Error(t, err)
	assert.Equal(t, "MSEZ/SAVM/MEMORY_CAP", msezErrCode(t, err))
}

func TestExecute_UnexpandedReadIsFatalNotZeroFill(t *testing.T) {
	mem := NewMemory(1024)
	_, err := mem.Read(0, 32)
	require.Error(t, err)
}

func TestExecute_UnknownOpcodeRefuses(t *testing.T) {
	code := []byte{0xAB} // not present in GasCost
	_, err := Execute(code, ExecutionContext{}, NewStorage(), 1_000_000, Coprocessors{})
	require.Error(t, err)
}

func TestExecute_JumpRequiresJumpDest(t *testing.T) {
	code := append(push1(5), byte(OpJump))
	_, err := Execute(code, ExecutionContext{}, NewStorage(), 1_000_000, Coprocessors{})
	require.Error(t, err)
	assert.Equal(t, "MSEZ/SAVM/INVALID_JUMP", msezErrCode(t, err))
}

func TestExecute_DeterministicAcrossRuns(t *testing.T) {
	code := []byte{}
	code = append(code, push1(0)...) // mstore offset, pushed first so it sits beneath the computed value
	code = append(code, push1(7)...)
	code = append(code, push1(6)...)
	code = append(code, byte(OpMul))
	code = append(code, push1(100)...)
	code = append(code, byte(OpAdd))
	code = append(code, byte(OpMStore))
	code = append(code, push1(0)...)
	code = append(code, push1(32)...)
	code = append(code, byte(OpReturn))

	ctx := ExecutionContext{Timestamp: 1000, BlockHeight: 42}
	r1, err1 := Execute(code, ctx, NewStorage(), 1_000_000, Coprocessors{})
	r2, err2 := Execute(code, ctx, NewStorage(), 1_000_000, Coprocessors{})
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, r1.ReturnData, r2.ReturnData)
	assert.Equal(t, r1.GasUsed, r2.GasUsed)
}

func TestExecute_MigrationPortSuccessAndFailure(t *testing.T) {
	ok := &stubMigration{}
	code := []byte{}
	code = append(code, push1(0)...) // mstore offset, pushed first so it sits beneath the result
	code = append(code, push1(0)...) // saga-id memory offset
	code = append(code, push1(0)...) // saga-id length (empty id is fine for this stub)
	code = append(code, byte(OpMigrationLock))
	code = append(code, byte(OpMStore))
	code = append(code, push1(0)...)
	code = append(code, push1(32)...)
	code = append(code, byte(OpReturn))

	result, err := Execute(code, ExecutionContext{}, NewStorage(), 1_000_000, Coprocessors{Migration: ok})
	require.NoError(t, err)
	assert.Equal(t, byte(1), result.ReturnData[31])
}

type stubMigration struct{}

func (s *stubMigration) Lock(string) error    { return nil }
func (s *stubMigration) Unlock(string) error  { return nil }
func (s *stubMigration) Transit(string) error { return nil }
func (s *stubMigration) Settle(string) error  { return nil }

func msezErrCode(t *testing.T, err error) string {
	t.Helper()
	code := msezerr.CodeOf(err)
	require.NotEmpty(t, code)
	return code
}
