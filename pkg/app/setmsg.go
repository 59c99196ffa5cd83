package app

import (
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/lorabadge/pkg/atcmd"
	"github.com/robotalks/lorabadge/pkg/userdata"
)

// MessageStore is edited by AT+SETMSG.
type MessageStore interface {
	SetMessage(slot int, text string) error
	Save() error
}

// Shower shows a slot on the display.
type Shower interface {
	Show(n int) error
}

// SetMsgCommand creates AT+SETMSG=<slot>:<text>. The slot accepts
// decimal, 0x hex and 0 octal notation; the text is everything after
// the first colon. The message is stored, saved and shown.
func SetMsgCommand(store MessageStore, shower Shower) *atcmd.Command {
	return &atcmd.Command{
		Name: "+SETMSG",
		Help: "Set message",
		Exec: func(param string) error {
			slot, text, err := ParseSetMsg(param)
			if err != nil {
				return err
			}
			if err = store.SetMessage(slot, text); err != nil {
				return atcmd.ErrParamValue
			}
			if err = store.Save(); err != nil {
				glog.Errorf("[AT] save message %d: %v", slot, err)
			}
			if shower != nil {
				if err = shower.Show(slot); err != nil {
					glog.Errorf("[AT] show message %d: %v", slot, err)
				}
			}
			return nil
		},
	}
}

// ParseSetMsg validates <slot>:<text>.
func ParseSetMsg(param string) (int, string, error) {
	pos := strings.IndexByte(param, ':')
	if pos < 0 {
		return 0, "", atcmd.ErrParamValue
	}
	slot, err := strconv.ParseInt(strings.TrimSpace(param[:pos]), 0, 32)
	if err != nil || slot < 1 || slot > userdata.Slots {
		return 0, "", atcmd.ErrParamValue
	}
	text := param[pos+1:]
	if len(text) > userdata.SlotSize {
		return 0, "", atcmd.ErrParamValue
	}
	return int(slot), text, nil
}
