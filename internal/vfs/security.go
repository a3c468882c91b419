package vfs

import "os"

// WorldSID is the well-known SID of the Everyone group.
const WorldSID = "S-1-1-0"

// ReadExecuteMask is ReadAndExecute plus ListDirectory and Synchronize.
const ReadExecuteMask uint32 = 0x001200A9

// SecurityDescriptor is the fixed ACL of every file and directory: owner and
// group are Everyone and the only entry allows Everyone to read, list and
// execute.
type SecurityDescriptor struct {
	Owner     string
	Group     string
	AllowSID  string
	AllowMask uint32
	SDDL      string
	Mode      os.FileMode
}

var (
	fileSecurity = SecurityDescriptor{
		Owner:     WorldSID,
		Group:     WorldSID,
		AllowSID:  WorldSID,
		AllowMask: ReadExecuteMask,
		SDDL:      "O:WDG:WDD:PAI(A;;0x1200a9;;;WD)",
		Mode:      0444,
	}
	directorySecurity = SecurityDescriptor{
		Owner:     WorldSID,
		Group:     WorldSID,
		AllowSID:  WorldSID,
		AllowMask: ReadExecuteMask,
		SDDL:      "O:WDG:WDD:PAI(A;OICI;0x1200a9;;;WD)",
		Mode:      os.ModeDir | 0555,
	}
)

// SecurityFor returns the descriptor for a file or a directory.
func SecurityFor(isDirectory bool) SecurityDescriptor {
	if isDirectory {
		return directorySecurity
	}
	return fileSecurity
}
