package config

const DefaultDeveloperDir = "/Applications/Xcode.app/Contents/Developer"

// DefaultRuntimeImportPath is the runtime support package generated code imports.
const DefaultRuntimeImportPath = "objcbind/runtime/objc"

var DefaultFrameworks = []string{"Foundation"}

// DefaultHeaders are the loose headers whose declarations every framework builds on.
var DefaultHeaders = []string{"objc/NSObject.h", "MacTypes.h"}

// DefaultExtraIncludes returns headers force-included before a framework's umbrella header.
func DefaultExtraIncludes() map[string][]string {
	return map[string][]string{
		// The umbrella header leaves out the Objective-C interface.
		"IOSurface": {"IOSurface/IOSurfaceObjC.h"},
	}
}

// DefaultFallbacks returns names assumed to exist even when no header defines them.
func DefaultFallbacks() map[string]string {
	return map[string]string{
		"NSString": "Foundation",
	}
}
