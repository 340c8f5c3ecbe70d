package savm

import "github.com/momentum-sez/msez-core/pkg/msezerr"

// MaxStackDepth bounds the operand stack per spec §4.12.
const MaxStackDepth = 1024

// Stack is the VM's operand stack.
type Stack struct {
	items []Word
}

// NewStack returns an empty stack.
func NewStack() *Stack { return &Stack{} }

func (s *Stack) Len() int { return len(s.items) }

func (s *Stack) Push(w Word) error {
	if len(s.items) >= MaxStackDepth {
		return msezerr.New(msezerr.KindResource, msezerr.CodeStackOverflow, "operand stack exceeded max depth")
	}
	s.items = append(s.items, w)
	return nil
}

func (s *Stack) Pop() (Word, error) {
	if len(s.items) == 0 {
		return Word{}, msezerr.New(msezerr.KindIntegrity, "MSEZ/SAVM/STACK_UNDERFLOW", "pop on empty stack")
	}
	top := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return top, nil
}

// Peek returns the item n back from the top (0 is the top) without popping.
func (s *Stack) Peek(n int) (Word, error) {
	idx := len(s.items) - 1 - n
	if idx < 0 {
		return Word{}, msezerr.New(msezerr.KindIntegrity, "MSEZ/SAVM/STACK_UNDERFLOW", "peek beyond stack depth")
	}
	return s.items[idx], nil
}

// Dup pushes a copy of the item n back from the top.
func (s *Stack) Dup(n int) error {
	w, err := s.Peek(n)
	if err != nil {
		return err
	}
	return s.Push(w)
}

// Swap exchanges the top item with the item n back from the top.
func (s *Stack) Swap(n int) error {
	idx := len(s.items) - 1 - n
	if idx < 0 || len(s.items) == 0 {
		return msezerr.New(msezerr.KindIntegrity, "MSEZ/SAVM/STACK_UNDERFLOW", "swap beyond stack depth")
	}
	top := len(s.items) - 1
	s.items[top], s.items[idx] = s.items[idx], s.items[top]
	return nil
}
