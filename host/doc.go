// Package host simulates the operating system side of the driver model.
//
// A [Manager] plays the plug-and-play manager. It enumerates devices into
// any [driver.PnP] implementation and delivers lifecycle callbacks in
// order:
//
//   - Attach: AddDevice, then Start
//   - Detach: QueryRemove, then Remove (the driver may veto)
//   - Eject: Remove without asking, as on surprise removal
//   - Suspend and Resume: Stop with D3, D0 with Start
//   - Shutdown: eject everything, then Unload
//
// A [File] is an application's open handle to one device. It forwards
// synchronous and asynchronous reads and writes to a [driver.IO] and,
// on Close, cancels its queued requests and waits for the rest.
//
// # Example
//
//	d, _ := driver.New(nil)
//	m := host.New(d)
//
//	h, err := m.Attach(ctx, driver.DefaultHardwareID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f := host.Open(d, h)
//	defer f.Close()
//
//	f.Write(ctx, []byte("hello"))
//	buf := make([]byte, 5)
//	n, err := f.Read(ctx, buf)
package host
