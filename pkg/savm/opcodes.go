package savm

// Opcode is one instruction byte. Class ranges are contiguous per spec
// §4.12's table.
type Opcode byte

const (
	// Stack class 0x00-0x0F
	OpPush1  Opcode = 0x00
	OpPush32 Opcode = 0x01
	OpPop    Opcode = 0x02
	OpDup    Opcode = 0x03
	OpSwap   Opcode = 0x04

	// Arithmetic class 0x10-0x1F
	OpAdd Opcode = 0x10
	OpSub Opcode = 0x11
	OpMul Opcode = 0x12
	OpDiv Opcode = 0x13
	OpMod Opcode = 0x14

	// Comparison/bool class 0x20-0x2F
	OpEq  Opcode = 0x20
	OpLt  Opcode = 0x21
	OpGt  Opcode = 0x22
	OpAnd Opcode = 0x23
	OpOr  Opcode = 0x24
	OpXor Opcode = 0x25
	OpNot Opcode = 0x26

	// Memory class 0x30-0x3F
	OpMLoad  Opcode = 0x30
	OpMStore Opcode = 0x31
	OpMSize  Opcode = 0x32

	// Storage class 0x40-0x4F
	OpSLoad   Opcode = 0x40
	OpSStore  Opcode = 0x41
	OpSDelete Opcode = 0x42

	// Control flow class 0x50-0x5F
	OpJump     Opcode = 0x50
	OpJumpI    Opcode = 0x51
	OpCall     Opcode = 0x52
	OpReturn   Opcode = 0x53
	OpRevert   Opcode = 0x54
	OpJumpDest Opcode = 0x55

	// Context class 0x60-0x6F
	OpTimestamp   Opcode = 0x60
	OpBlockHeight Opcode = 0x61

	// Compliance coprocessor class 0x70-0x7F
	OpComplianceGet Opcode = 0x70

	// Migration coprocessor class 0x80-0x8F
	OpMigrationLock    Opcode = 0x80
	OpMigrationUnlock  Opcode = 0x81
	OpMigrationTransit Opcode = 0x82
	OpMigrationSettle  Opcode = 0x83

	// Crypto class 0x90-0x9F
	OpHash         Opcode = 0x90
	OpVerifySig    Opcode = 0x91
	OpMerkleVerify Opcode = 0x92

	// System class 0xF0-0xFF
	OpHalt  Opcode = 0xF0
	OpLog   Opcode = 0xF1
	OpDebug Opcode = 0xF2
)

// GasCost is the single gas-cost table spec §4.12 requires: every opcode
// must have an explicit entry, and an opcode missing from this table is a
// verifier refusal to execute.
var GasCost = map[Opcode]uint64{
	OpPush1: 3, OpPush32: 3, OpPop: 2, OpDup: 3, OpSwap: 3,
	OpAdd: 3, OpSub: 3, OpMul: 5, OpDiv: 5, OpMod: 5,
	OpEq: 3, OpLt: 3, OpGt: 3, OpAnd: 3, OpOr: 3, OpXor: 3, OpNot: 3,
	OpMLoad: 3, OpMStore: 3, OpMSize: 2,
	OpSLoad: 200, OpSStore: 5000, OpSDelete: 5000,
	OpJump: 8, OpJumpI: 10, OpCall: 40, OpReturn: 0, OpRevert: 0, OpJumpDest: 1,
	OpTimestamp: 2, OpBlockHeight: 2,
	OpComplianceGet: 100,
	OpMigrationLock: 500, OpMigrationUnlock: 500, OpMigrationTransit: 500, OpMigrationSettle: 500,
	OpHash: 30, OpVerifySig: 3000, OpMerkleVerify: 1000,
	OpHalt: 0, OpLog: 375, OpDebug: 1,
}

// MemoryExpansionGasPerWord is the per-32-byte-word cost of expanding
// memory, charged before any read that would exceed the current
// allocation.
const MemoryExpansionGasPerWord = 3
