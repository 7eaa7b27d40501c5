package linuxhid

// evdev ioctl numbers not exposed by golang.org/x/sys/unix, computed with
// the standard Linux _IOC(dir,type,nr,size) macro from linux/input.h.
const (
	evIOCGrabWriteIOC = 0x40044590 // EVIOCGRAB: _IOW('E', 0x90, int)
	absInfoSize       = 24         // sizeof(struct input_absinfo): six int32 fields
)

// EVIOCGRAB is the ioctl number for exclusively grabbing (arg=1) or
// releasing (arg=0) an evdev node (spec.md §4.2 "It grabs the device on
// open so the kernel routes events only to us").
const EVIOCGRAB = evIOCGrabWriteIOC

// EVIOCGABS returns the ioctl number for reading struct input_absinfo for
// absolute axis code abs (spec.md §4.2 "Axis ranges ... are probed once").
func EVIOCGABS(abs int) uintptr {
	const dirRead = 2
	const typeE = 'E'
	base := uintptr(dirRead)<<30 | uintptr(absInfoSize)<<16 | uintptr(typeE)<<8
	return base | uintptr(0x40+abs)
}
