package tokens

import "fmt"

func matchMasterToken(mtSerialNumber int64, mt *MasterToken) error {
	if mt == nil {
		return newError(TokenUserIDToken, CodeSerialMismatch, KeyMasterTokenSerialNumber).
			withRaw(fmt.Sprintf("%s %d; no master token", KeyMasterTokenSerialNumber, mtSerialNumber))
	}
	if mtSerialNumber != mt.SerialNumber {
		return newError(TokenUserIDToken, CodeSerialMismatch, KeyMasterTokenSerialNumber).
			withRaw(fmt.Sprintf("%s %d; %s %d", KeyMasterTokenSerialNumber, mtSerialNumber, KeySerialNumber, mt.SerialNumber))
	}
	return nil
}
