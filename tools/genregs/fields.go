// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

// fieldSpec describes one bf_reg_t entry: its name, the byte offset of
// its simulated storage within a VS's 4 KiB backing page on each backend,
// and its bit width. Real hardware reaches VMCS fields through a VMCS
// field encoding (kernel/src/x64/intel/vmcs_t.hpp) rather than a direct
// memory offset; since pkg/intrinsic's VMREAD/VMWRITE equivalents operate
// on a plain byte slice instead of real VMX/SVM state, the offsets below
// are this package's own flat layout for that slice, assigned densely and
// per-backend so Intel-only and AMD-only fields don't collide with the
// fields that exist on both. A zero value in either column means the
// field does not exist on that backend, which pkg/vs turns into
// mkerrors.ErrUnsupported.
type fieldSpec struct {
	name     string
	category string
	intel    uint64
	amd      uint64
	width    int // bits
}

// fieldTable is the full register surface named in spec.md §4.3. Grouped
// by category in the same order the generated table is emitted.
var fieldTable = []fieldSpec{
	{"rax", "gpr", 0x8, 0x8, 64},
	{"rbx", "gpr", 0x10, 0x10, 64},
	{"rcx", "gpr", 0x18, 0x18, 64},
	{"rdx", "gpr", 0x20, 0x20, 64},
	{"rbp", "gpr", 0x28, 0x28, 64},
	{"rsi", "gpr", 0x30, 0x30, 64},
	{"rdi", "gpr", 0x38, 0x38, 64},
	{"r8", "gpr", 0x40, 0x40, 64},
	{"r9", "gpr", 0x48, 0x48, 64},
	{"r10", "gpr", 0x50, 0x50, 64},
	{"r11", "gpr", 0x58, 0x58, 64},
	{"r12", "gpr", 0x60, 0x60, 64},
	{"r13", "gpr", 0x68, 0x68, 64},
	{"r14", "gpr", 0x70, 0x70, 64},
	{"r15", "gpr", 0x78, 0x78, 64},
	{"rip", "gpr", 0x80, 0x80, 64},
	{"rsp", "gpr", 0x88, 0x88, 64},
	{"rflags", "gpr", 0x90, 0x90, 64},
	{"cr0", "control", 0x98, 0x98, 64},
	{"cr2", "control", 0xa0, 0xa0, 64},
	{"cr3", "control", 0xa8, 0xa8, 64},
	{"cr4", "control", 0xb0, 0xb0, 64},
	{"cr8", "control", 0xb8, 0xb8, 64},
	{"dr7", "control", 0xc0, 0xc0, 64},
	{"es_selector", "segment", 0xc8, 0xc8, 16},
	{"es_base", "segment", 0xd0, 0xd0, 64},
	{"es_limit", "segment", 0xd8, 0xd8, 32},
	{"es_attrib", "segment", 0xdc, 0xdc, 32},
	{"cs_selector", "segment", 0xe0, 0xe0, 16},
	{"cs_base", "segment", 0xe8, 0xe8, 64},
	{"cs_limit", "segment", 0xf0, 0xf0, 32},
	{"cs_attrib", "segment", 0xf4, 0xf4, 32},
	{"ss_selector", "segment", 0xf8, 0xf8, 16},
	{"ss_base", "segment", 0x100, 0x100, 64},
	{"ss_limit", "segment", 0x108, 0x108, 32},
	{"ss_attrib", "segment", 0x10c, 0x10c, 32},
	{"ds_selector", "segment", 0x110, 0x110, 16},
	{"ds_base", "segment", 0x118, 0x118, 64},
	{"ds_limit", "segment", 0x120, 0x120, 32},
	{"ds_attrib", "segment", 0x124, 0x124, 32},
	{"fs_selector", "segment", 0x128, 0x128, 16},
	{"fs_base", "segment", 0x130, 0x130, 64},
	{"fs_limit", "segment", 0x138, 0x138, 32},
	{"fs_attrib", "segment", 0x13c, 0x13c, 32},
	{"gs_selector", "segment", 0x140, 0x140, 16},
	{"gs_base", "segment", 0x148, 0x148, 64},
	{"gs_limit", "segment", 0x150, 0x150, 32},
	{"gs_attrib", "segment", 0x154, 0x154, 32},
	{"ldtr_selector", "segment", 0x158, 0x158, 16},
	{"ldtr_base", "segment", 0x160, 0x160, 64},
	{"ldtr_limit", "segment", 0x168, 0x168, 32},
	{"ldtr_attrib", "segment", 0x16c, 0x16c, 32},
	{"tr_selector", "segment", 0x170, 0x170, 16},
	{"tr_base", "segment", 0x178, 0x178, 64},
	{"tr_limit", "segment", 0x180, 0x180, 32},
	{"tr_attrib", "segment", 0x184, 0x184, 32},
	{"gdtr_base", "dtable", 0x188, 0x188, 64},
	{"gdtr_limit", "dtable", 0x190, 0x190, 32},
	{"idtr_base", "dtable", 0x198, 0x198, 64},
	{"idtr_limit", "dtable", 0x1a0, 0x1a0, 32},
	{"ia32_pat", "msr", 0x1a8, 0x1a8, 64},
	{"ia32_efer", "msr", 0x1b0, 0x1b0, 64},
	{"ia32_sysenter_cs", "msr", 0x1b8, 0x1b8, 32},
	{"ia32_sysenter_esp", "msr", 0x1c0, 0x1c0, 64},
	{"ia32_sysenter_eip", "msr", 0x1c8, 0x1c8, 64},
	{"ia32_debugctl", "msr", 0x1d0, 0x1d0, 64},
	{"ia32_perf_global_ctrl", "msr", 0x1d8, 0x0, 64},
	{"pin_based_vm_execution_ctls", "vmcontrol", 0x1e0, 0x1d8, 32},
	{"proc_based_vm_execution_ctls", "vmcontrol", 0x1e4, 0x1dc, 32},
	{"proc_based_vm_execution_ctls2", "vmcontrol", 0x1e8, 0x1e0, 32},
	{"vm_exit_ctls", "vmcontrol", 0x1ec, 0x0, 32},
	{"vm_entry_ctls", "vmcontrol", 0x1f0, 0x0, 32},
	{"vm_function_ctls", "vmcontrol", 0x1f8, 0x0, 64},
	{"ept_pointer", "vmcontrol", 0x200, 0x0, 64},
	{"eoi_exit_bitmap0", "vmcontrol", 0x208, 0x0, 64},
	{"eoi_exit_bitmap1", "vmcontrol", 0x210, 0x0, 64},
	{"eoi_exit_bitmap2", "vmcontrol", 0x218, 0x0, 64},
	{"eoi_exit_bitmap3", "vmcontrol", 0x220, 0x0, 64},
	{"tsc_offset", "vmcontrol", 0x228, 0x1e8, 64},
	{"tsc_multiplier", "vmcontrol", 0x230, 0x0, 64},
	{"apic_access_addr", "vmcontrol", 0x238, 0x0, 64},
	{"virtual_apic_addr", "vmcontrol", 0x240, 0x1f0, 64},
	{"posted_interrupt_desc_addr", "vmcontrol", 0x248, 0x0, 64},
	{"vmread_bitmap_addr", "vmcontrol", 0x250, 0x0, 64},
	{"vmwrite_bitmap_addr", "vmcontrol", 0x258, 0x0, 64},
	{"xss_exiting_bitmap", "vmcontrol", 0x260, 0x0, 64},
	{"pml_address", "vmcontrol", 0x268, 0x0, 64},
	{"page_fault_error_code_mask", "vmcontrol", 0x270, 0x0, 32},
	{"page_fault_error_code_match", "vmcontrol", 0x274, 0x0, 32},
	{"cr0_guest_host_mask", "vmcontrol", 0x278, 0x0, 64},
	{"cr0_read_shadow", "vmcontrol", 0x280, 0x0, 64},
	{"cr4_guest_host_mask", "vmcontrol", 0x288, 0x0, 64},
	{"cr4_read_shadow", "vmcontrol", 0x290, 0x0, 64},
	{"cr3_target_value0", "vmcontrol", 0x298, 0x0, 64},
	{"cr3_target_value1", "vmcontrol", 0x2a0, 0x0, 64},
	{"cr3_target_value2", "vmcontrol", 0x2a8, 0x0, 64},
	{"cr3_target_value3", "vmcontrol", 0x2b0, 0x0, 64},
	{"exit_reason", "exitinfo", 0x2b8, 0x1f8, 64},
	{"exit_qualification", "exitinfo", 0x2c0, 0x0, 64},
	{"exit_interruption_information", "exitinfo", 0x2c8, 0x0, 32},
	{"exit_interruption_error_code", "exitinfo", 0x2cc, 0x0, 32},
	{"guest_physical_address", "exitinfo", 0x2d0, 0x0, 64},
	{"vmexit_instruction_length", "exitinfo", 0x2d8, 0x200, 32},
	{"vm_instruction_error", "exitinfo", 0x2e0, 0x0, 32},
	{"idt_vectoring_information_field", "exitinfo", 0x2e8, 0x204, 32},
	{"idt_vectoring_error_code", "exitinfo", 0x2f0, 0x208, 32},
	{"vmexit_instruction_information", "exitinfo", 0x2f8, 0x0, 32},
	{"guest_linear_address", "exitinfo", 0x300, 0x20c, 64},
	{"io_rcx", "exitinfo", 0x308, 0x0, 64},
	{"io_rsi", "exitinfo", 0x310, 0x0, 64},
	{"io_rdi", "exitinfo", 0x318, 0x0, 64},
	{"io_rip", "exitinfo", 0x320, 0x0, 64},

	// virtual_processor_identifier through pml_index: kernel/src/x64/
	// intel/vmcs_t.hpp:46-72's control-field-identification group, no
	// SVM equivalent (ASID replaces VPID; AMD has no posted-interrupt,
	// EPTP-index, or PML concept).
	{"virtual_processor_identifier", "vmcontrol", 0x328, 0x0, 16},
	{"posted_interrupt_notification_vector", "vmcontrol", 0x330, 0x0, 16},
	{"eptp_index", "vmcontrol", 0x338, 0x0, 16},
	{"guest_interrupt_status", "vmcontrol", 0x340, 0x0, 16},
	{"pml_index", "vmcontrol", 0x348, 0x0, 16},

	// address_of_io_bitmap_a through vmentry_msr_load_address:
	// vmcs_t.hpp:89-100's I/O-bitmap/MSR-bitmap/VM-exit/VM-entry
	// MSR-store/load address fields.
	{"address_of_io_bitmap_a", "vmcontrol", 0x350, 0x0, 64},
	{"address_of_io_bitmap_b", "vmcontrol", 0x358, 0x0, 64},
	{"address_of_msr_bitmaps", "vmcontrol", 0x360, 0x0, 64},
	{"vmexit_msr_store_address", "vmcontrol", 0x368, 0x0, 64},
	{"vmexit_msr_load_address", "vmcontrol", 0x370, 0x0, 64},
	{"vmentry_msr_load_address", "vmcontrol", 0x378, 0x0, 64},
	{"executive_vmcs_pointer", "vmcontrol", 0x380, 0x0, 64},
	{"eptp_list_address", "vmcontrol", 0x388, 0x0, 64},
	{"virt_exception_information_address", "vmcontrol", 0x390, 0x0, 64},
	{"encls_exiting_bitmap", "vmcontrol", 0x398, 0x0, 64},
	{"sub_page_permission_table_pointer", "vmcontrol", 0x3a0, 0x0, 64},
	{"tls_multiplier", "vmcontrol", 0x3a8, 0x0, 64},
	{"vmcs_link_pointer", "vmcontrol", 0x3b0, 0x0, 64},

	{"exception_bitmap", "vmcontrol", 0x3b8, 0x210, 32},
	{"cr3_target_count", "vmcontrol", 0x3c0, 0x0, 32},
	{"vmexit_msr_store_count", "vmcontrol", 0x3c4, 0x0, 32},
	{"vmexit_msr_load_count", "vmcontrol", 0x3c8, 0x0, 32},
	{"vmentry_msr_load_count", "vmcontrol", 0x3cc, 0x0, 32},
	{"vmentry_interrupt_information_field", "vmcontrol", 0x3d0, 0x214, 32},
	{"vmentry_exception_error_code", "vmcontrol", 0x3d4, 0x218, 32},
	{"vmentry_instruction_length", "vmcontrol", 0x3d8, 0x21c, 32},
	{"tpr_threshold", "vmcontrol", 0x3dc, 0x0, 32},
	{"ple_gap", "vmcontrol", 0x3e0, 0x0, 32},
	{"ple_window", "vmcontrol", 0x3e4, 0x0, 32},
	{"vmx_preemption_timer_value", "vmcontrol", 0x3e8, 0x0, 32},

	// guest_pdpte0 through guest_rtit_ctl: vmcs_t.hpp:155-166's
	// EPT-paging-structure and trace-control guest state, Intel-only.
	{"guest_pdpte0", "guest", 0x3f0, 0x0, 64},
	{"guest_pdpte1", "guest", 0x3f8, 0x0, 64},
	{"guest_pdpte2", "guest", 0x400, 0x0, 64},
	{"guest_pdpte3", "guest", 0x408, 0x0, 64},
	{"guest_ia32_bndcfgs", "guest", 0x410, 0x0, 64},
	{"guest_rtit_ctl", "guest", 0x418, 0x0, 64},
	{"guest_interruptibility_state", "guest", 0x420, 0x21c, 32},
	{"guest_activity_state", "guest", 0x428, 0x220, 32},
	{"guest_smbase", "guest", 0x430, 0x0, 32},
	{"guest_pending_debug_exceptions", "guest", 0x438, 0x224, 64},

	// host_es_selector through host_rip: vmcs_t.hpp:74-87,168-173,
	// 276-373's host-state-area fields, restored by the processor on
	// every VM exit. AMD's VMCB host-state save area covers the same
	// ground for the registers both architectures name; the Intel-only
	// IA32_PERF_GLOBAL_CTRL entry follows the existing guest one's
	// amd=0 convention.
	{"host_es_selector", "host", 0x440, 0x228, 16},
	{"host_cs_selector", "host", 0x448, 0x230, 16},
	{"host_ss_selector", "host", 0x450, 0x238, 16},
	{"host_ds_selector", "host", 0x458, 0x240, 16},
	{"host_fs_selector", "host", 0x460, 0x248, 16},
	{"host_gs_selector", "host", 0x468, 0x250, 16},
	{"host_tr_selector", "host", 0x470, 0x258, 16},
	{"host_ia32_pat", "host", 0x478, 0x260, 64},
	{"host_ia32_efer", "host", 0x480, 0x268, 64},
	{"host_ia32_perf_global_ctrl", "host", 0x488, 0x0, 64},
	{"host_ia32_sysenter_cs", "host", 0x490, 0x0, 32},
	{"host_cr0", "host", 0x498, 0x270, 64},
	{"host_cr3", "host", 0x4a0, 0x278, 64},
	{"host_cr4", "host", 0x4a8, 0x280, 64},
	{"host_fs_base", "host", 0x4b0, 0x288, 64},
	{"host_gs_base", "host", 0x4b8, 0x290, 64},
	{"host_tr_base", "host", 0x4c0, 0x298, 64},
	{"host_gdtr_base", "host", 0x4c8, 0x2a0, 64},
	{"host_idtr_base", "host", 0x4d0, 0x2a8, 64},
	{"host_ia32_sysenter_esp", "host", 0x4d8, 0x0, 64},
	{"host_ia32_sysenter_eip", "host", 0x4e0, 0x0, 64},
	{"host_rsp", "host", 0x4e8, 0x2b0, 64},
	{"host_rip", "host", 0x4f0, 0x2b8, 64},
}
