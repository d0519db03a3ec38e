package rpcapi

// ServiceName is the abstract gRPC service both agent and admin processes
// register their unit-control methods under.
const ServiceName = "ghaf.givc.UnitControl"

// Method full names, in the "/package.Service/Method" shape grpc.Invoke and
// grpc.RegisterService expect.
const (
	MethodRegisterService = "/" + ServiceName + "/RegisterService"
	MethodStartVM         = "/" + ServiceName + "/StartVM"
	MethodStartApp        = "/" + ServiceName + "/StartApplication"
	MethodStartService    = "/" + ServiceName + "/StartService"
	MethodPause           = "/" + ServiceName + "/Pause"
	MethodResume          = "/" + ServiceName + "/Resume"
	MethodStop            = "/" + ServiceName + "/Stop"
	MethodKill            = "/" + ServiceName + "/Kill"
	MethodFreeze          = "/" + ServiceName + "/Freeze"
	MethodUnfreeze        = "/" + ServiceName + "/Unfreeze"
	MethodGet             = "/" + ServiceName + "/Get"
	MethodPoweroff        = "/" + ServiceName + "/Poweroff"
	MethodReboot          = "/" + ServiceName + "/Reboot"
	MethodSuspend         = "/" + ServiceName + "/Suspend"
	MethodWakeup          = "/" + ServiceName + "/Wakeup"
	MethodSetLocale       = "/" + ServiceName + "/SetLocale"
	MethodSetTimezone     = "/" + ServiceName + "/SetTimezone"
	MethodGetStats        = "/" + ServiceName + "/GetStats"
	MethodQueryList = "/" + ServiceName + "/QueryList"
	MethodWatch     = "/" + ServiceName + "/Watch"
)
