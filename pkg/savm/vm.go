package savm

import (
	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// MemoryMax bounds total expandable memory per spec §4.12.
const MemoryMax = 1 << 20 // 1 MiB

// ExecutionResult is everything Execute returns about a completed run.
type ExecutionResult struct {
	ReturnData []byte
	GasUsed    uint64
	Reverted   bool
	RevertCode string
	Storage    Storage
}

type vm struct {
	code    []byte
	pc      int
	stack   *Stack
	mem     *Memory
	storage Storage
	ctx     ExecutionContext
	coprocs Coprocessors

	gasLimit uint64
	gasUsed  uint64
}

// Execute runs bytecode to completion (HALT, RETURN, REVERT, or running off
// the end of the program) against initialStorage, returning the resulting
// ExecutionResult. Two calls with identical bytecode, ctx, initialStorage
// and gasLimit always produce an identical result: nothing in the
// dispatch loop reads a wall clock or RNG, and coprocessor ports must
// uphold that same determinism for callers who wire non-mock ones in.
func Execute(bytecode []byte, ctx ExecutionContext, initialStorage Storage, gasLimit uint64, coprocs Coprocessors) (ExecutionResult, error) {
	m := &vm{
		code:     bytecode,
		stack:    NewStack(),
		mem:      NewMemory(MemoryMax),
		storage:  initialStorage.Clone(),
		ctx:      ctx,
		coprocs:  coprocs,
		gasLimit: gasLimit,
	}
	return m.run()
}

func (m *vm) charge(cost uint64) error {
	if m.gasUsed+cost > m.gasLimit {
		return msezerr.New(msezerr.KindResource, msezerr.CodeOutOfGas, "gas limit exceeded")
	}
	m.gasUsed += cost
	return nil
}

func (m *vm) run() (ExecutionResult, error) {
	for m.pc < len(m.code) {
		op := Opcode(m.code[m.pc])
		cost, ok := GasCost[op]
		if !ok {
			return ExecutionResult{}, msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/UNKNOWN_OPCODE",
				"opcode has no gas-table entry; verifier refuses to execute")
		}
		if err := m.charge(cost); err != nil {
			return ExecutionResult{}, err
		}

		halted, reverted, revertCode, retData, err := m.step(op)
		if err != nil {
			return ExecutionResult{}, err
		}
		if halted {
			return ExecutionResult{
				ReturnData: retData,
				GasUsed:    m.gasUsed,
				Reverted:   reverted,
				RevertCode: revertCode,
				Storage:    m.storage,
			}, nil
		}
	}
	return ExecutionResult{GasUsed: m.gasUsed, Storage: m.storage}, nil
}

// step executes one instruction, advancing m.pc. It returns halted=true
// when execution should stop (HALT, RETURN, or REVERT); running off the end
// of the program is detected by run, not here.
func (m *vm) step(op Opcode) (halted, reverted bool, revertCode string, retData []byte, err error) {
	switch op {
	case OpPush1:
		b, e := m.readImmediate(1)
		if e != nil {
			return false, false, "", nil, e
		}
		err = m.stack.Push(WordFromBytes(b))
	case OpPush32:
		b, e := m.readImmediate(32)
		if e != nil {
			return false, false, "", nil, e
		}
		err = m.stack.Push(WordFromBytes(b))
	case OpPop:
		_, err = m.stack.Pop()
	case OpDup:
		n, e := m.readImmediate(1)
		if e != nil {
			return false, false, "", nil, e
		}
		err = m.stack.Dup(int(n[0]))
	case OpSwap:
		n, e := m.readImmediate(1)
		if e != nil {
			return false, false, "", nil, e
		}
		err = m.stack.Swap(int(n[0]))

	case OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpEq, OpLt, OpGt, OpAnd, OpOr, OpXor:
		err = m.binaryOp(op)
	case OpNot:
		a, e := m.stack.Pop()
		if e != nil {
			return false, false, "", nil, e
		}
		err = m.stack.Push(boolWord(a.IsZero()))

	case OpMLoad:
		err = m.opMLoad()
	case OpMStore:
		err = m.opMStore()
	case OpMSize:
		err = m.stack.Push(WordFromUint64(uint64(m.mem.Size())))

	case OpSLoad:
		key, e := m.stack.Pop()
		if e != nil {
			return false, false, "", nil, e
		}
		err = m.stack.Push(m.storage.Get(key))
	case OpSStore:
		value, e := m.stack.Pop()
		if e != nil {
			return false, false, "", nil, e
		}
		key, e := m.stack.Pop()
		if e != nil {
			return false, false, "", nil, e
		}
		m.storage.Set(key, value)
	case OpSDelete:
		key, e := m.stack.Pop()
		if e != nil {
			return false, false, "", nil, e
		}
		m.storage.Delete(key)

	case OpJump:
		dest, e := m.stack.Pop()
		if e != nil {
			return false, false, "", nil, e
		}
		return false, false, "", nil, m.jumpTo(int(dest.Uint64()))
	case OpJumpI:
		dest, e := m.stack.Pop()
		if e != nil {
			return false, false, "", nil, e
		}
		cond, e := m.stack.Pop()
		if e != nil {
			return false, false, "", nil, e
		}
		if !cond.IsZero() {
			return false, false, "", nil, m.jumpTo(int(dest.Uint64()))
		}
		m.pc++
		return false, false, "", nil, nil
	case OpJumpDest:
		m.pc++
		return false, false, "", nil, nil
	case OpCall:
		return false, false, "", nil, msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/CALL_UNSUPPORTED",
			"cross-contract calls are not wired in this runtime")
	case OpReturn:
		data, e := m.popReturnRange()
		if e != nil {
			return false, false, "", nil, e
		}
		return true, false, "", data, nil
	case OpRevert:
		data, e := m.popReturnRange()
		if e != nil {
			return false, false, "", nil, e
		}
		return true, true, "MSEZ/SAVM/REVERT", data, nil

	case OpTimestamp:
		err = m.stack.Push(WordFromUint64(uint64(m.ctx.Timestamp)))
	case OpBlockHeight:
		err = m.stack.Push(WordFromUint64(uint64(m.ctx.BlockHeight)))

	case OpComplianceGet:
		err = m.opComplianceGet()

	case OpMigrationLock, OpMigrationUnlock, OpMigrationTransit, OpMigrationSettle:
		err = m.opMigration(op)

	case OpHash:
		err = m.opHash()
	case OpVerifySig:
		err = m.opVerifySig()
	case OpMerkleVerify:
		err = m.opMerkleVerify()

	case OpHalt:
		return true, false, "", nil, nil
	case OpLog, OpDebug:
		// no-op observability hooks; arguments are left on the stack for
		// the caller's inspection rather than consumed, since this
		// runtime has no attached log sink.

	default:
		return false, false, "", nil, msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/UNKNOWN_OPCODE",
			"opcode has a gas entry but no dispatch case")
	}
	if err != nil {
		return false, false, "", nil, err
	}
	m.pc++
	return false, false, "", nil, nil
}

func boolWord(b bool) Word {
	if b {
		return WordFromUint64(1)
	}
	return ZeroWord()
}

func (m *vm) binaryOp(op Opcode) error {
	b, err := m.stack.Pop()
	if err != nil {
		return err
	}
	a, err := m.stack.Pop()
	if err != nil {
		return err
	}
	var result Word
	switch op {
	case OpAdd:
		result = a.Add(b)
	case OpSub:
		result = a.Sub(b)
	case OpMul:
		result = a.Mul(b)
	case OpDiv:
		result = a.Div(b)
	case OpMod:
		result = a.Mod(b)
	case OpEq:
		result = boolWord(a.Eq(b))
	case OpLt:
		result = boolWord(a.Lt(b))
	case OpGt:
		result = boolWord(a.Gt(b))
	case OpAnd:
		result = a.And(b)
	case OpOr:
		result = a.Or(b)
	case OpXor:
		result = a.Xor(b)
	}
	return m.stack.Push(result)
}

// readImmediate reads n bytes following the opcode byte and advances pc
// past them, returning exactly n bytes; a truncated immediate is an error.
func (m *vm) readImmediate(n int) ([]byte, error) {
	start := m.pc + 1
	if start+n > len(m.code) {
		return nil, msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/TRUNCATED_IMMEDIATE", "immediate operand runs past end of code")
	}
	m.pc += n
	return m.code[start : start+n], nil
}

func (m *vm) jumpTo(dest int) error {
	if dest < 0 || dest >= len(m.code) || Opcode(m.code[dest]) != OpJumpDest {
		return msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/INVALID_JUMP", "jump target is not a JUMPDEST")
	}
	m.pc = dest
	return nil
}

// opMLoad pops an offset and pushes the 32-byte word read from memory,
// expanding (and charging for) memory first.
func (m *vm) opMLoad() error {
	offsetW, err := m.stack.Pop()
	if err != nil {
		return err
	}
	offset := int(offsetW.Uint64())
	cost, err := m.mem.Expand(offset, 32)
	if err != nil {
		return err
	}
	if err := m.charge(cost); err != nil {
		return err
	}
	data, err := m.mem.Read(offset, 32)
	if err != nil {
		return err
	}
	return m.stack.Push(WordFromBytes(data))
}

func (m *vm) opMStore() error {
	value, err := m.stack.Pop()
	if err != nil {
		return err
	}
	offsetW, err := m.stack.Pop()
	if err != nil {
		return err
	}
	offset := int(offsetW.Uint64())
	cost, err := m.mem.Expand(offset, 32)
	if err != nil {
		return err
	}
	if err := m.charge(cost); err != nil {
		return err
	}
	b := value.Bytes32()
	return m.mem.Write(offset, b[:])
}

// popReturnRange pops offset and size and reads that many bytes from
// memory, expanding first.
func (m *vm) popReturnRange() ([]byte, error) {
	sizeW, err := m.stack.Pop()
	if err != nil {
		return nil, err
	}
	offsetW, err := m.stack.Pop()
	if err != nil {
		return nil, err
	}
	offset, size := int(offsetW.Uint64()), int(sizeW.Uint64())
	if size == 0 {
		return nil, nil
	}
	cost, err := m.mem.Expand(offset, size)
	if err != nil {
		return nil, err
	}
	if err := m.charge(cost); err != nil {
		return nil, err
	}
	return m.mem.Read(offset, size)
}

// readMemString pops offset and length and reads that range from memory as
// a string, expanding first. Used by the coprocessor opcodes, which take
// their string arguments by memory reference rather than as Words.
func (m *vm) readMemString() (string, error) {
	lenW, err := m.stack.Pop()
	if err != nil {
		return "", err
	}
	offsetW, err := m.stack.Pop()
	if err != nil {
		return "", err
	}
	offset, length := int(offsetW.Uint64()), int(lenW.Uint64())
	if length == 0 {
		return "", nil
	}
	cost, err := m.mem.Expand(offset, length)
	if err != nil {
		return "", err
	}
	if err := m.charge(cost); err != nil {
		return "", err
	}
	data, err := m.mem.Read(offset, length)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// opComplianceGet pops (offset,len) pairs for time, domain, jurisdiction,
// asset (in that reverse order, matching a caller pushing them
// asset/jurisdiction/domain/time before the call) and pushes the resolved
// tensor state ordinal.
func (m *vm) opComplianceGet() error {
	if m.coprocs.Compliance == nil {
		return msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/NO_COMPLIANCE_PORT", "compliance coprocessor not wired")
	}
	timeKey, err := m.readMemString()
	if err != nil {
		return err
	}
	domain, err := m.readMemString()
	if err != nil {
		return err
	}
	jurisdiction, err := m.readMemString()
	if err != nil {
		return err
	}
	assetID, err := m.readMemString()
	if err != nil {
		return err
	}
	state, err := m.coprocs.Compliance.Get(assetID, jurisdiction, domain, timeKey)
	if err != nil {
		return err
	}
	return m.stack.Push(WordFromUint64(uint64(state)))
}

// opMigration pops a saga-id string reference and drives the corresponding
// saga step, pushing 1 on success and 0 on a port-reported failure.
func (m *vm) opMigration(op Opcode) error {
	if m.coprocs.Migration == nil {
		return msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/NO_MIGRATION_PORT", "migration coprocessor not wired")
	}
	sagaID, err := m.readMemString()
	if err != nil {
		return err
	}
	var stepErr error
	switch op {
	case OpMigrationLock:
		stepErr = m.coprocs.Migration.Lock(sagaID)
	case OpMigrationUnlock:
		stepErr = m.coprocs.Migration.Unlock(sagaID)
	case OpMigrationTransit:
		stepErr = m.coprocs.Migration.Transit(sagaID)
	case OpMigrationSettle:
		stepErr = m.coprocs.Migration.Settle(sagaID)
	}
	return m.stack.Push(boolWord(stepErr == nil))
}

func (m *vm) opHash() error {
	if m.coprocs.Crypto == nil {
		return msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/NO_CRYPTO_PORT", "crypto port not wired")
	}
	data, err := m.popReturnRange()
	if err != nil {
		return err
	}
	h := m.coprocs.Crypto.Hash(data)
	return m.stack.Push(WordFromBytes(h[:]))
}

func (m *vm) opVerifySig() error {
	if m.coprocs.Crypto == nil {
		return msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/NO_CRYPTO_PORT", "crypto port not wired")
	}
	sig, err := m.popReturnRange()
	if err != nil {
		return err
	}
	msg, err := m.popReturnRange()
	if err != nil {
		return err
	}
	pubKey, err := m.popReturnRange()
	if err != nil {
		return err
	}
	ok := m.coprocs.Crypto.VerifySig(pubKey, msg, sig)
	return m.stack.Push(boolWord(ok))
}

func (m *vm) opMerkleVerify() error {
	if m.coprocs.Crypto == nil {
		return msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/NO_CRYPTO_PORT", "crypto port not wired")
	}
	indexW, err := m.stack.Pop()
	if err != nil {
		return err
	}
	proofBytes, err := m.popReturnRange()
	if err != nil {
		return err
	}
	if len(proofBytes)%32 != 0 {
		return msezerr.New(msezerr.KindValidation, "MSEZ/SAVM/MALFORMED_PROOF", "merkle proof length is not a multiple of 32")
	}
	proof := make([][32]byte, len(proofBytes)/32)
	for i := range proof {
		copy(proof[i][:], proofBytes[i*32:(i+1)*32])
	}
	leafW, err := m.stack.Pop()
	if err != nil {
		return err
	}
	rootW, err := m.stack.Pop()
	if err != nil {
		return err
	}
	ok := m.coprocs.Crypto.MerkleVerify(rootW.Bytes32(), leafW.Bytes32(), proof, indexW.Uint64())
	return m.stack.Push(boolWord(ok))
}
