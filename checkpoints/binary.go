package checkpoints

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire layout of the binary checkpoint format. Field numbers are stable;
// unknown fields are skipped on load so older readers tolerate newer files.
//
//	Checkpoint:      1 generator weights (repeated message)
//	                 2 discriminator weights (repeated message)
//	                 3 balance (message)
//	                 4 training state (message)
//	                 5 metadata (message)
//	WeightTensor:    1 name, 2 shape (packed varint), 3 data (packed fixed32), 4 role
//	BalanceSnapshot: 1 k, 2 lambda, 3 gamma, 4 convergence, 5 has_convergence
//	TrainingState:   1 epoch, 2 step, 3 generator lr, 4 discriminator lr,
//	                 5 best convergence, 6 total steps
//	Metadata:        1 version, 2 framework, 3 run id, 4 created at (unix nanos),
//	                 5 description, 6 tags (repeated string)

func marshalCheckpoint(checkpoint *Checkpoint) []byte {
	var buf []byte
	for i := range checkpoint.GeneratorWeights {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, marshalWeight(&checkpoint.GeneratorWeights[i]))
	}
	for i := range checkpoint.DiscriminatorWeights {
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendBytes(buf, marshalWeight(&checkpoint.DiscriminatorWeights[i]))
	}
	buf = protowire.AppendTag(buf, 3, protowire.BytesType)
	buf = protowire.AppendBytes(buf, marshalBalance(&checkpoint.Balance))
	buf = protowire.AppendTag(buf, 4, protowire.BytesType)
	buf = protowire.AppendBytes(buf, marshalTrainingState(&checkpoint.TrainingState))
	buf = protowire.AppendTag(buf, 5, protowire.BytesType)
	buf = protowire.AppendBytes(buf, marshalMetadata(&checkpoint.Metadata))
	return buf
}

func marshalWeight(weight *WeightTensor) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendString(buf, weight.Name)

	var shapeBuf []byte
	for _, dim := range weight.Shape {
		shapeBuf = protowire.AppendVarint(shapeBuf, uint64(dim))
	}
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendBytes(buf, shapeBuf)

	var dataBuf []byte
	for _, v := range weight.Data {
		dataBuf = protowire.AppendFixed32(dataBuf, math.Float32bits(v))
	}
	buf = protowire.AppendTag(buf, 3, protowire.BytesType)
	buf = protowire.AppendBytes(buf, dataBuf)

	buf = protowire.AppendTag(buf, 4, protowire.BytesType)
	buf = protowire.AppendString(buf, weight.Role)
	return buf
}

func marshalBalance(balance *BalanceSnapshot) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(balance.K))
	buf = protowire.AppendTag(buf, 2, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(balance.Lambda))
	buf = protowire.AppendTag(buf, 3, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(balance.Gamma))
	buf = protowire.AppendTag(buf, 4, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(balance.Convergence))
	buf = protowire.AppendTag(buf, 5, protowire.VarintType)
	buf = protowire.AppendVarint(buf, protowire.EncodeBool(balance.HasConvergence))
	return buf
}

func marshalTrainingState(state *TrainingState) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(state.Epoch))
	buf = protowire.AppendTag(buf, 2, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(state.Step))
	buf = protowire.AppendTag(buf, 3, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(state.GeneratorLR))
	buf = protowire.AppendTag(buf, 4, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(state.DiscriminatorLR))
	buf = protowire.AppendTag(buf, 5, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(state.BestConvergence))
	buf = protowire.AppendTag(buf, 6, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(state.TotalSteps))
	return buf
}

func marshalMetadata(metadata *CheckpointMetadata) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendString(buf, metadata.Version)
	buf = protowire.AppendTag(buf, 2, protowire.BytesType)
	buf = protowire.AppendString(buf, metadata.Framework)
	buf = protowire.AppendTag(buf, 3, protowire.BytesType)
	buf = protowire.AppendString(buf, metadata.RunID)
	buf = protowire.AppendTag(buf, 4, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(metadata.CreatedAt.UnixNano()))
	buf = protowire.AppendTag(buf, 5, protowire.BytesType)
	buf = protowire.AppendString(buf, metadata.Description)
	for _, tag := range metadata.Tags {
		buf = protowire.AppendTag(buf, 6, protowire.BytesType)
		buf = protowire.AppendString(buf, tag)
	}
	return buf
}

func unmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	checkpoint := &Checkpoint{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("invalid field tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case 1, 2:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("invalid weight field: %v", protowire.ParseError(n))
			}
			data = data[n:]
			weight, err := unmarshalWeight(raw)
			if err != nil {
				return nil, err
			}
			if num == 1 {
				checkpoint.GeneratorWeights = append(checkpoint.GeneratorWeights, *weight)
			} else {
				checkpoint.DiscriminatorWeights = append(checkpoint.DiscriminatorWeights, *weight)
			}
		case 3:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("invalid balance field: %v", protowire.ParseError(n))
			}
			data = data[n:]
			if err := unmarshalBalance(raw, &checkpoint.Balance); err != nil {
				return nil, err
			}
		case 4:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("invalid training state field: %v", protowire.ParseError(n))
			}
			data = data[n:]
			if err := unmarshalTrainingState(raw, &checkpoint.TrainingState); err != nil {
				return nil, err
			}
		case 5:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("invalid metadata field: %v", protowire.ParseError(n))
			}
			data = data[n:]
			if err := unmarshalMetadata(raw, &checkpoint.Metadata); err != nil {
				return nil, err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("invalid field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return checkpoint, nil
}

func unmarshalWeight(data []byte) (*WeightTensor, error) {
	weight := &WeightTensor{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("invalid weight tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("invalid weight name: %v", protowire.ParseError(n))
			}
			weight.Name = v
			data = data[n:]
		case 2:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("invalid weight shape: %v", protowire.ParseError(n))
			}
			data = data[n:]
			for len(raw) > 0 {
				v, m := protowire.ConsumeVarint(raw)
				if m < 0 {
					return nil, fmt.Errorf("invalid shape entry: %v", protowire.ParseError(m))
				}
				weight.Shape = append(weight.Shape, int(v))
				raw = raw[m:]
			}
		case 3:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("invalid weight data: %v", protowire.ParseError(n))
			}
			data = data[n:]
			weight.Data = make([]float32, 0, len(raw)/4)
			for len(raw) > 0 {
				v, m := protowire.ConsumeFixed32(raw)
				if m < 0 {
					return nil, fmt.Errorf("invalid data entry: %v", protowire.ParseError(m))
				}
				weight.Data = append(weight.Data, math.Float32frombits(v))
				raw = raw[m:]
			}
		case 4:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("invalid weight role: %v", protowire.ParseError(n))
			}
			weight.Role = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("invalid weight field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return weight, nil
}

func unmarshalBalance(data []byte, balance *BalanceSnapshot) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("invalid balance tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case 1, 2, 3, 4:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return fmt.Errorf("invalid balance value: %v", protowire.ParseError(n))
			}
			data = data[n:]
			f := math.Float64frombits(v)
			switch num {
			case 1:
				balance.K = f
			case 2:
				balance.Lambda = f
			case 3:
				balance.Gamma = f
			case 4:
				balance.Convergence = f
			}
		case 5:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("invalid balance flag: %v", protowire.ParseError(n))
			}
			balance.HasConvergence = protowire.DecodeBool(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("invalid balance field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

func unmarshalTrainingState(data []byte, state *TrainingState) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("invalid training state tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case 1, 2, 6:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("invalid training counter: %v", protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case 1:
				state.Epoch = int(v)
			case 2:
				state.Step = int(v)
			case 6:
				state.TotalSteps = int(v)
			}
		case 3, 4, 5:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return fmt.Errorf("invalid training value: %v", protowire.ParseError(n))
			}
			data = data[n:]
			f := math.Float64frombits(v)
			switch num {
			case 3:
				state.GeneratorLR = f
			case 4:
				state.DiscriminatorLR = f
			case 5:
				state.BestConvergence = f
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("invalid training state field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

func unmarshalMetadata(data []byte, metadata *CheckpointMetadata) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("invalid metadata tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case 1, 2, 3, 5:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("invalid metadata string: %v", protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case 1:
				metadata.Version = v
			case 2:
				metadata.Framework = v
			case 3:
				metadata.RunID = v
			case 5:
				metadata.Description = v
			}
		case 4:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("invalid metadata timestamp: %v", protowire.ParseError(n))
			}
			metadata.CreatedAt = time.Unix(0, int64(v))
			data = data[n:]
		case 6:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("invalid metadata tag entry: %v", protowire.ParseError(n))
			}
			metadata.Tags = append(metadata.Tags, v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("invalid metadata field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}
