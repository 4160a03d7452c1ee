// Package chip8 provides the CHIP-8 instruction decoder.
//
// # Memory Layout
//
// CHIP-8 systems have 4KB of memory (0x000-MaxAddress):
//   - 0x000-0x1FF: Interpreter area (not used for user programs)
//   - ProgramStart-MaxAddress: User program and data area
//
// # Instruction Set
//
//   - All instructions are 2 bytes (16 bits), stored big endian
//   - Instructions use direct addressing with 12-bit addresses
//   - 16 general-purpose 8-bit registers (V0-VF)
//   - Special-purpose registers: I (16-bit), PC, SP
//
// # Control Flow
//
// JP and CALL produce flows to their 12 bit target, CALL additionally falls
// through to the following instruction. The skip instructions SE, SNE, SKP and
// SKNP produce a conditional flow over the following instruction. JP V0 is an
// indirect jump with unknown destination. LD I, addr labels its target as data.
package chip8
